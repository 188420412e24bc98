package constants

const (
	// TraceHeader is the default HTTP header for trace identifiers.
	TraceHeader = "X-Trace-ID"
	// RequestHeader is the default HTTP header for request identifiers.
	RequestHeader = "X-Request-ID"
	// TraceMetadataKey is the default gRPC metadata key for trace identifiers.
	TraceMetadataKey = "x-trace-id"
	// RequestMetadataKey is the default gRPC metadata key for request identifiers.
	RequestMetadataKey = "x-request-id"
)
