// Package trello provides read access to a Trello board's action log.
//
// The package has two halves:
//
//   - The action data model (Action, Data, Diff, Display). Diff keeps the
//     key order of the upstream "old" object because the update renderer
//     reports the first changed field.
//   - Client, an authenticated HTTP client. Every request carries the
//     configured key and token as query parameters. A transport failure or
//     a non-2xx status is reported as an *UnavailableError, which matches
//     ErrSourceUnavailable under errors.Is. The client never retries; a
//     failed run is retried by the next invocation.
//
// Board actions arrive newest first. Callers reverse them before any
// chronological processing.
package trello
