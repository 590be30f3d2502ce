// Package resource enforces memory, IO, and background-worker limits for
// the page layer. A nil controller disables all enforcement, so callers
// never need to branch on configuration.
package resource
