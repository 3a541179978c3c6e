package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"gocut/internal/domain"
	"gocut/internal/event"
)

// Record is the wire form of an event. Tree objects are referenced by name.
type Record struct {
	Kind       event.Kind         `json:"kind"`
	RunID      string             `json:"run_id,omitempty"`
	Suite      string             `json:"suite,omitempty"`
	Case       string             `json:"case,omitempty"`
	Test       string             `json:"test,omitempty"`
	Data       string             `json:"data,omitempty"`
	Iterated   bool               `json:"iterated,omitempty"`
	Result     *domain.TestResult `json:"result,omitempty"`
	Success    bool               `json:"success,omitempty"`
	Time       time.Time          `json:"time"`
	TotalCases int                `json:"total_cases,omitempty"`
	TotalTests int                `json:"total_tests,omitempty"`
}

// NewRecord flattens e.
func NewRecord(e event.Event) Record {
	r := Record{
		Kind:       e.Kind,
		RunID:      e.RunID,
		Result:     e.Result,
		Success:    e.Success,
		Time:       e.Time,
		TotalCases: e.TotalCases,
		TotalTests: e.TotalTests,
	}
	if e.Suite != nil {
		r.Suite = e.Suite.Name
	}
	if e.Case != nil {
		r.Case = e.Case.Name
	}
	if e.Test != nil {
		r.Test = e.Test.Name
		r.Iterated = e.Test.IsIterated()
	}
	if e.Data != nil {
		r.Data = e.Data.Name
	}
	return r
}

// Encoder writes events as JSON lines. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

func (e *Encoder) Encode(ev event.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(NewRecord(ev))
}

// StreamParser decodes JSON lines back into events. Names are resolved
// against a known suite when one is given, so decoded events point at the
// same tree objects the parent holds; unknown names get placeholder
// objects that are reused for the rest of the stream.
type StreamParser struct {
	suite *domain.TestSuite
	cases map[string]*domain.TestCase
	tests map[string]*domain.Test
	data  map[string]*domain.TestData
}

func NewStreamParser(known *domain.TestSuite) *StreamParser {
	return &StreamParser{
		suite: known,
		cases: make(map[string]*domain.TestCase),
		tests: make(map[string]*domain.Test),
		data:  make(map[string]*domain.TestData),
	}
}

// maxLine bounds a single record; results carry captured output.
const maxLine = 16 << 20

func (p *StreamParser) Parse(r io.Reader, emit func(event.Event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		e, err := p.ParseLine(sc.Bytes())
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		emit(e)
	}
	return sc.Err()
}

// ParseLine decodes one record.
func (p *StreamParser) ParseLine(b []byte) (event.Event, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return event.Event{}, fmt.Errorf("decoding event: %w", err)
	}
	e := event.Event{
		Kind:       r.Kind,
		RunID:      r.RunID,
		Result:     r.Result,
		Success:    r.Success,
		Time:       r.Time,
		TotalCases: r.TotalCases,
		TotalTests: r.TotalTests,
	}
	e.Suite = p.resolveSuite(r.Suite)
	if r.Case != "" {
		e.Case = p.resolveCase(r.Case)
	}
	if r.Test != "" {
		e.Test = p.resolveTest(e.Case, r.Test, r.Iterated)
	}
	if r.Data != "" {
		e.Data = p.resolveData(r.Case, r.Test, r.Data)
	}
	return e, nil
}

func (p *StreamParser) resolveSuite(name string) *domain.TestSuite {
	if p.suite == nil {
		p.suite = domain.NewTestSuite(name)
	}
	return p.suite
}

func (p *StreamParser) resolveCase(name string) *domain.TestCase {
	if c, ok := p.cases[name]; ok {
		return c
	}
	c := p.suite.Case(name)
	if c == nil {
		c = domain.NewTestCase(name)
	}
	p.cases[name] = c
	return c
}

func (p *StreamParser) resolveTest(c *domain.TestCase, name string, iterated bool) *domain.Test {
	key := name
	if c != nil {
		key = c.Name + "/" + name
	}
	if t, ok := p.tests[key]; ok {
		return t
	}
	var t *domain.Test
	if c != nil {
		t = c.Test(name)
	}
	if t == nil {
		t = domain.NewTest(name, nil)
		if iterated {
			t.IteratedFunc = func(any) {}
		}
	}
	p.tests[key] = t
	return t
}

func (p *StreamParser) resolveData(caseName, testName, name string) *domain.TestData {
	key := caseName + "/" + testName + "/" + name
	if d, ok := p.data[key]; ok {
		return d
	}
	d := &domain.TestData{Name: name}
	p.data[key] = d
	return d
}
