// Package app wires the application together: validated configuration,
// logger construction, rule loading, and the build session lifecycle.
package app
