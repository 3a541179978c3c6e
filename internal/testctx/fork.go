package testctx

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"gocut/internal/domain"
	"gocut/internal/process"
)

const forkEntryPrefix = "gocut.fork."

// RegisterForkEntry makes fn runnable through Context.Fork under name. The
// child runs fn inside its own context whose results are streamed back to
// the parent. It exits 1 when fn registered a pending, failure or error
// and 0 otherwise, unless fn exits by itself.
func RegisterForkEntry(name string, fn func()) {
	process.Register(forkEntryPrefix+name, func(args []string) int {
		w := process.ResultPipe()
		var out io.Writer = io.Discard
		if w != nil {
			defer w.Close()
			out = w
		}

		c := New(Options{
			Test:     domain.NewTest(name, fn),
			Reporter: NewStreamReporter(out),
		})
		Push(c)
		defer Pop()

		c.Invoke(fn)
		os.Stdout.Sync()
		if c.Failed() {
			return 1
		}
		return 0
	})
}

// StreamReporter writes every result as one JSON line.
type StreamReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewStreamReporter(w io.Writer) *StreamReporter {
	return &StreamReporter{enc: json.NewEncoder(w)}
}

func (s *StreamReporter) ReportResult(_ *Context, r domain.TestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enc.Encode(r)
}

func (s *StreamReporter) ReportAssertion(*Context) {}
