// Package config holds model, environment and application-file configuration
// for Astra. Environment settings are loaded with go-envconfig, structs are
// checked with validator tags, and application definitions are read from YAML.
package config
