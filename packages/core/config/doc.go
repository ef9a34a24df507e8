// Package config handles configuration loading and management for hitexec.
//
// It provides functionality for:
//   - Loading configuration from JSON (.hitexec.json) or YAML (.hitexec.yaml) files
//   - Default configuration values
//   - Validating and merging configurations
package config
