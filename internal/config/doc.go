// Package config loads and validates application settings using viper.
// Values come from built-in defaults, an optional config.yaml, and FITHUB_
// prefixed environment variables, in that order of precedence.
package config
