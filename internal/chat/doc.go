// Package chat is the request/response path to the travel backend.
//
// Client posts one conversational turn per call (plain text as JSON or an
// image as multipart), reads and patches the backend session state, and asks
// the backend to identify the city shown in a photo. Requests go through
// resty on a pooled transport with an optional client-side rate limit. They
// are never retried.
//
// Non-2xx responses surface as *APIError carrying the backend's error text.
// Session wraps a Client for interactive callers and turns every failure into
// an error string instead of a returned error.
package chat
