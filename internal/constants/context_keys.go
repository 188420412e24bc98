package constants

type (
	// TraceKey is the context key for the trace field.
	TraceKey struct{}
	// RequestKey is the context key for the request field.
	RequestKey struct{}
)

// ContextKeyMap maps record field names to the context keys they are read from.
func ContextKeyMap() map[string]any {
	return map[string]any{
		"trace_id":   TraceKey{},
		"request_id": RequestKey{},
	}
}
