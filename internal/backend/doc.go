// Package backend is the client for the patient records REST API.
//
// It covers four calls: POST /auth/token (password exchange), GET /patient
// and GET /patient/{id} (record lookup), and POST /patient/data/{id}
// (palpation results). The bearer token from a successful Authenticate is
// cached inside the client and attached to every later call; authenticated
// calls fail fast with a token-missing error when nothing is cached.
//
// Every failure crosses the package boundary as a typed *Error value
// (network, auth, HTTP status, parse, token missing) so callers can build
// structured replies for WebSocket clients without string matching.
package backend
