// Package parser encodes run events as JSON lines and rebuilds them on the
// other side of a process boundary.
package parser

import (
	"io"

	"gocut/internal/event"
)

// Parser reads an event stream and hands every decoded event to emit.
type Parser interface {
	Parse(r io.Reader, emit func(event.Event)) error
}
