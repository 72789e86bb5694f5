// Package shutdown runs cleanup hooks when a process stops.
//
// A stop is requested either by SIGINT/SIGTERM or by Trigger, which the
// checkpoint writer uses for a scheduled abort. Both paths run the same
// hooks in reverse registration order.
package shutdown
