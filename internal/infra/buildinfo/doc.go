// Package buildinfo exposes the version, commit and build time stamped
// into pebbl binaries, plus the Go toolchain version.
package buildinfo
