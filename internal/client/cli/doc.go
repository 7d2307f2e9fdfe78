// Package cli provides the interactive foliokeeper command-line client.
//
// It wires configuration, the local session database and the REST API
// client into a REPL. A background watcher pings the server and switches
// the prompt between online and offline.
//
// Commands: register, login, logout, whoami, status, refresh, reset,
// confirm, help, exit (or quit).
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
