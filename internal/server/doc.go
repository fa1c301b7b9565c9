// Package server provides HTTP routing, middleware, and the status endpoints of the sync daemon.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] and [Recover] are provided.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /status").
//
// # Status Handler
//
// [StatusHandler] serves:
//   - GET /health : {"status": "ok"} while the process is up
//   - GET /status : a [Status] built by a [StatusProvider] (cursor, cache size, last run, next run)
//
// A provider error is reported as 503 with the error message.
//
// # Lifecycle
//
// [Serve] runs an [http.Server] until its context is cancelled and then shuts it down gracefully.
// The daemon starts it only when server.enabled is set in the configuration.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
