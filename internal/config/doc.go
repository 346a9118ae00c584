// Package config provides configuration loading and validation for the intercom.
// It handles YAML-based configuration layered over built-in defaults, with
// per-section validation and millisecond-to-duration helpers.
package config
