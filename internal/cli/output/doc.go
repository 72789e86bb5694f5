// Package output renders command results for pebbl-cp as a table, JSON
// or YAML.
package output
