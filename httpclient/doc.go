// Package httpclient provides a small, composable HTTP client with
// default headers, bearer-token auth via a pluggable TokenSource,
// and a retry mechanism with exponential backoff and jitter.
//
// Retries
//   - Controlled via Builder.WithRetries(maxAttempts, backoffBase).
//   - Retries occur on:
//   - Transport errors (network failures)
//   - Timeouts (context deadline exceeded or net.Error timeout)
//   - HTTP 5xx responses
//   - 4xx responses are not retried; 401/403 classify as auth failures
//     so callers can run their refresh-then-replay flow.
//
// Timeouts
//   - Each attempt runs under its own context deadline.
//   - The deadline grows by TimeoutGrowth on every retry, so a request
//     that timed out gets progressively more time.
//
// Backoff Strategy
//   - Exponential backoff based on backoffBase: delay = backoffBase * 2^attempt
//   - Full jitter is applied: actual sleep is random in [0, delay).
//   - Delay is capped at 30 seconds to avoid excessive waits.
//
// Notes
//   - Request bodies are re-sent by rebuilding the http.Request on each attempt.
//   - The TokenSource is consulted per attempt, so a token refreshed
//     between retries is used by the replay.
package httpclient
