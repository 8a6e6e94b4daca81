// Package config loads mediaroute configuration from YAML.
//
// Values of the form ${VAR} are expanded from the environment before the
// document is parsed, so secrets such as database passwords can stay out
// of the file. Optional fields fall back to the Default* constants.
package config
