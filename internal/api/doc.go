// Package api provides HTTP client functionality for communicating with the
// Cooperative Hub REST API. It handles base URL normalization, bearer-token
// authentication, request serialization (JSON or multipart), retry of
// rate-limited requests, and normalization of every response into an
// [Envelope].
//
// # Client Creation
//
// The package provides two ways to create a client:
//
//   - [NewClient]: Struct-based configuration for explicit, type-safe setup.
//   - [New]: Functional options pattern for flexible configuration.
//
// Both require a base URL. The configured origin is normalized by
// [NormalizeBaseURL]: trailing slashes are stripped and /api is appended
// unless already present.
//
// # Retry Behavior
//
// Only 429 Too Many Requests is retried, up to 3 times by default. The wait
// before each retry is the server's Retry-After value when present, otherwise
// 500ms multiplied by the retry number (500ms, 1s, 1.5s). After the retries are
// exhausted the last 429 is returned as an [APIError]. Every other failure is
// returned immediately.
//
// # Response Normalization
//
// Successful responses become an [Envelope] whose Kind records how it was
// produced:
//
//   - [EnvelopeWrapped]: the JSON object already had a data or message key.
//   - [EnvelopeBare]: any other JSON payload, wrapped as {data: payload}.
//   - [EnvelopeText]: a non-JSON body, wrapped as {data: {message: text}}.
//   - [EnvelopeEmpty]: 204 or an empty body, {data: null}.
//
// # Error Handling
//
// Non-2xx responses return an [APIError] whose message prefers the backend's
// error field, then its message field, then the HTTP status text. Transport
// failures return a [NetworkError] (status 0). Every 401 runs the configured
// unauthorized handler before the error is returned.
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use. Multiple goroutines may call
// methods on a single Client simultaneously.
package api
