// Package httputil provides the JSON response helpers shared by the API
// handlers.
//
// Handlers use these helpers instead of writing to http.ResponseWriter
// directly so that every endpoint returns the same error envelope:
//
//	{"error": "human readable message", "code": "machine_code"}
package httputil
