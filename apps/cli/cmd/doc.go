// Package cmd implements the hitexec CLI commands using Cobra.
//
// Available commands:
//   - send: Send a request, validate the response and print it
//   - history: Show previously recorded requests
//   - init: Write a starter .hitexec.yaml
//   - completion: Generate shell completion scripts
//   - version: Show hitexec version information
//
// Flags fall back to HITEXEC_* environment variables and then to the
// config file. Watch mode re-sends when a referenced file changes.
package cmd
