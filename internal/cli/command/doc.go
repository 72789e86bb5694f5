// Package command defines the pebbl-cp commands for inspecting checkpoint
// directories and load logs.
package command
