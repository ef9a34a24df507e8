// Package output renders executed requests for the terminal.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: One JSON document per line for scripting
//
// Both formats implement Formatter. The console formatter also renders the
// stored request history.
package output
