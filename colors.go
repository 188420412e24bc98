package hyperrelay

//nolint:revive // Pointless to comment the colors.
const (
	// ANSI color codes for terminal output.

	// Regular colors.

	Red     = "\x1b[31m"
	Green   = "\x1b[32m"
	Yellow  = "\x1b[33m"
	Blue    = "\x1b[34m"
	Magenta = "\x1b[35m"
	Cyan    = "\x1b[36m"

	// Bold colors.

	BoldRed    = "\x1b[31;1m"
	BoldYellow = "\x1b[33;1m"

	// Reset resets the terminal's color settings.
	Reset = "\x1b[0m"
)

// DefaultKindColors returns the ANSI color used to highlight each failure kind.
func DefaultKindColors() map[FailureKind]string {
	return map[FailureKind]string{
		FailurePermanent: Yellow,
		FailureFinal:     BoldRed,
	}
}

// DefaultLevelColors returns a map of log levels to their default ANSI color codes.
func DefaultLevelColors() map[Level]string {
	return map[Level]string{
		DebugLevel: Blue,
		InfoLevel:  Green,
		WarnLevel:  Yellow,
		ErrorLevel: Red,
	}
}

// ColorConfig holds color-related configuration for terminal output.
type ColorConfig struct {
	// Enable enables colored output.
	Enable bool
	// ForceTTY forces colored output even when the output is not a terminal.
	ForceTTY bool
	// KindColors maps failure kinds to their ANSI color codes.
	KindColors map[FailureKind]string
	// LevelColors maps log levels to their ANSI color codes.
	LevelColors map[Level]string
}

// DefaultColorConfig returns a color configuration that colors terminal output only.
func DefaultColorConfig() ColorConfig {
	return ColorConfig{
		Enable:      true,
		ForceTTY:    false,
		KindColors:  DefaultKindColors(),
		LevelColors: DefaultLevelColors(),
	}
}
