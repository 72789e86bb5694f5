// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first: a YAML file, PEBBL_ environment
// variables, then an explicit map (command-line flags). Each source
// overrides keys set by the ones before it; keys a source does not set
// keep the value already present in the target struct.
package confloader
