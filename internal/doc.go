// Package internal contains the implementation packages for panicbutton.
//
// # Package Organization
//
//   - auth: rolling access key derivation and constant-time validation
//   - action: lock/verify gateway, command runner and mock policies
//   - config: layered configuration loading and the published snapshot
//   - server: HTTP routes and server lifecycle
//   - middleware: request id, logging, CORS, compression, key guard, rate limit
//   - monitoring: Prometheus metrics and health checks
//   - logging: slog-backed structured logger
//   - errors: typed errors and the shared error handler
//   - validation: checks on operator-supplied startup values
//   - version: build metadata
//
// # Request Flow
//
// A request passes the middleware chain, then for the action routes the
// optional rate limiter and the key guard. Only a request carrying a valid
// key reaches the gateway, which either asks the mock policy or runs the
// configured command and waits for it to exit.
//
// # Concurrency
//
// Every request runs on its own goroutine. Configuration is immutable
// after startup; the only shared mutable state is the random mock source,
// the rate limiter buckets and the Prometheus collectors, each of which
// is internally synchronized.
package internal
