// Package http provides the handlers, middleware and router for the
// attendance API.
//
// Identity comes from the X-Org-ID, X-User-ID and X-User-Role headers
// the upstream gateway sets after authenticating the caller; requests
// without them are rejected with 401. Mutating routes additionally
// require an operator or admin role.
//
// The router exposes the following endpoints under /api/v1:
//   - POST /batches, GET /batches, GET /batches/{id}, PATCH /batches/{id}:
//     recurrence batch management exchanging the `batchDTO` payload
//     defined in batch_handler.go. Creating a batch expands its
//     recurrence into sessions and reports the count; GET accepts the
//     batch id or its slug.
//   - POST /sessions, GET /sessions, GET /sessions/{id}, PATCH /sessions/{id}:
//     session management exchanging the `sessionDTO` payload defined in
//     session_handler.go. The listing returns the display-filtered
//     visible set for a day (date, showPast, all) or, with ?batch=, the
//     raw sessions of one batch.
//   - POST /sessions/{id}/cancel, /reinstate, /complete, /scan-code:
//     lifecycle transitions returning the updated session.
//   - POST /sessions/{id}/check-in, GET /sessions/{id}/check-ins:
//     QR scan recording and the attendance list for a session.
//   - GET /sessions/indicators?year=&month=: calendar dot colors keyed
//     by date.
//   - GET /users/{id}/sessions.ics: the user's sessions as an
//     iCalendar subscription feed.
//   - POST /sweep: forces a completion sweep pass.
//
// Request/response DTOs live alongside their respective handlers so
// tests and documentation share the same ground truth.
package http
