// Package config loads and validates the intent-bridge YAML configuration.
//
// Environment variables referenced as ${VAR_NAME} inside the file are
// expanded before parsing, so secrets like relay tokens can stay out of the
// config file itself.
package config
