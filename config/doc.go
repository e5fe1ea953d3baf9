// Package config provides webpilot configuration loading with the
// precedence: built-in defaults, then a YAML file, then WEBPILOT_* environment
// variables.
package config
