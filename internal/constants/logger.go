package constants

// Encoding selects how log lines are rendered.
type Encoding string

const (
	// EncodingConsole renders human readable lines.
	EncodingConsole Encoding = "console"
	// EncodingJSON renders one JSON object per line.
	EncodingJSON Encoding = "json"
)

// IsValid returns true if the given Encoding is a known encoding, and false otherwise.
func (e Encoding) IsValid() bool {
	switch e {
	case EncodingConsole, EncodingJSON:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Encoding.
func (e Encoding) String() string {
	return string(e)
}
