package api

// Route constants for the API endpoints.

const (
	// Health endpoint
	PingEndpoint = "/ping" // GET: health check

	// Signer endpoint accepts the signer-proxy request union: sign-raw-tx,
	// sign-tx-call, sign-token, encode-token, encode-call, get-contracts,
	// get-address and get-tx-status all arrive as a single tagged JSON body.
	SignEndpoint = "/sign" // POST: dispatch a signer-proxy request

	// Events endpoint accepts a get-events query and returns the rendered
	// template strings for every matching log.
	EventsEndpoint = "/events" // POST: run an event query
)

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
