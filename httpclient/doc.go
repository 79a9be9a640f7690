// Package httpclient is the outbound HTTP client used to fetch remote audio
// and to talk to the model sidecar.
//
// It classifies failures (timeout, connection, HTTP status, oversize) into
// *Error values, caps response sizes, encodes JSON and multipart bodies and
// optionally wraps calls in retry and circuit-breaker policies from the
// resilience package.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL:         "http://localhost:8388",
//	    Timeout:         15 * time.Minute,
//	    CircuitBreaker:  httpclient.DefaultCircuitBreakerConfig("pyannote"),
//	})
//	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
package httpclient
