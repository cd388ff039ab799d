// Package handlers implements the HTTP status/control surface for the
// scheduling engine. Handlers translate between api/v1 JSON types and
// pkg/scheduler calls; they hold no business logic of their own.
//
// # Endpoints
//
//	┌────────┬───────────┬──────────────────────────────────────────┐
//	│ Method │ Path      │ Description                                │
//	├────────┼───────────┼──────────────────────────────────────────┤
//	│ GET    │ /status   │ Engine status snapshot                     │
//	│ POST   │ /requests │ Submit a new request for processing        │
//	│ GET    │ /events   │ Recent persisted engine events             │
//	│ POST   │ /shutdown │ Begin a bounded-time graceful shutdown     │
//	└────────┴───────────┴──────────────────────────────────────────┘
//
// /shutdown is gated behind a bearer JWT when config.Auth.Enabled is
// true; the other routes stay open.
//
// Errors are mapped to status codes via errors.As against the
// pkg/errors taxonomy: ValidationError -> 400, RejectionError -> 503,
// IllegalStateError -> 409, anything else -> 500.
package handlers
