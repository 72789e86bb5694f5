// Package pool provides the in-memory containers that hold a process's share
// of the search state: the worker pool of pending subproblems and the bounded
// solution repository used when enumerating multiple incumbents.
package pool
