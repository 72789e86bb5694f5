// Package config defines the run configuration of a pebbl process.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation
//   - load.go: loading through internal/infra/confloader
package config
