// Package tests holds scenarios that cross package boundaries: whole runs
// of several processes talking over HTTP, checkpointing, stopping and
// restarting with a different process count.
package tests
