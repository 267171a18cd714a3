package hec

import "fmt"

// ConfigError is returned from New when the supplied configuration is
// invalid (e.g. an unparseable or non-HTTP(S) URL). It is fatal to the
// caller: the client could not be constructed.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("hec: invalid config field %q: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ShutdownError is returned synchronously by any push after the client
// has been shut down.
type ShutdownError struct{}

func (e *ShutdownError) Error() string { return "hec: client has been shut down" }

// TransportError wraps a network failure, timeout, or non-2xx response.
// After retries are exhausted it is surfaced wrapped by
// retry.RetriesExhaustedError; Unwrap reaches the original cause.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("hec: transport error: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// SerializationError is surfaced synchronously from Push/PushEvent/
// PushMetric/PushMetrics when the input record's shape can't be encoded
// (e.g. a non-finite metric value). It is never retried.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("hec: serialization error: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// CompressionError wraps a gzip codec failure encountered while preparing
// a batch for send. A batch is compressed once, before the first send
// attempt; a compression failure fails that flush at once and is not
// retried.
type CompressionError struct {
	Err error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("hec: compression error: %v", e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }
