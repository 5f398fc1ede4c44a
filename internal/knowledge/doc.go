// Package knowledge is the client of the remote knowledge base API that
// analysis results are persisted into.
//
// Client wraps net/http with JSON encoding and retries: server errors and
// transport failures back off exponentially from the configured base delay
// up to MaxRetryDelay; 4xx responses fail on the first attempt. Every
// failure is an *APIError with a Category, and 404s match ErrNotFound.
package knowledge
