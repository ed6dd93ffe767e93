// Package main is tripctl, an interactive terminal client for the travel
// planning backend.
//
// It wires the request/response chat client, the streaming progress channel,
// the trip reconciler and the turn planner into a line-oriented REPL.
//
// Configuration:
//   - Environment variables and an optional .env file
//   - An optional YAML or TOML file (-config)
//   - CLI flags (override both)
//
// Usage:
//
//	# Talk to a local backend, keeping the session across restarts
//	./tripctl -api http://localhost:8000 -ws ws://localhost:8000 -session ~/.tripctl-session.json
//
//	# Development mode (colored logs, debug level)
//	./tripctl -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
