// Writer implementation printing snapshots to STDOUT
package sim

import (
	"io"
	"os"

	"golang.org/x/term"
)

// NewStdoutWriter prints colorized lines when STDOUT is a terminal and JSON
// lines otherwise.
func NewStdoutWriter() SnapshotWriter {
	return newStdoutWriter(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

func newStdoutWriter(out io.Writer, colorize bool) SnapshotWriter {
	if colorize {
		return NewColorStdoutWriter(out)
	}
	return NewJSONStdoutWriter(out)
}
