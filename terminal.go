package hyperrelay

import (
	"io"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w writes to a terminal. Writers exposing an
// Underlying() io.Writer are unwrapped first.
func IsTerminal(w io.Writer) bool {
	switch typed := w.(type) {
	case nil:
		return false
	case interface{ Underlying() io.Writer }:
		return IsTerminal(typed.Underlying())
	case interface{ Fd() uintptr }:
		fd := typed.Fd()

		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	default:
		return false
	}
}
