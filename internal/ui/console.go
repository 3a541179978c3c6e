package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"gocut/internal/domain"
	"gocut/internal/event"
)

// Console streams a run to a terminal: one mark per result while the run
// progresses, then the faults and a summary line when the suite completes.
type Console struct {
	out     io.Writer
	verbose bool
	marks   bool

	faults []domain.TestResult
	column int
}

// NewConsole creates a console streamer writing to out. In verbose mode
// every test is printed on its own line instead of as a single mark.
func NewConsole(out io.Writer, verbose bool) *Console {
	return &Console{out: out, verbose: verbose, marks: true}
}

// HideMarks stops the per-result marks, for when a progress bar shares the
// terminal. Faults are still printed at the end.
func (c *Console) HideMarks() *Console {
	c.marks = false
	return c
}

var statusColors = map[domain.Status]*color.Color{
	domain.StatusSuccess:      color.New(color.FgGreen),
	domain.StatusNotification: color.New(color.FgCyan),
	domain.StatusOmission:     color.New(color.FgBlue),
	domain.StatusPending:      color.New(color.FgMagenta),
	domain.StatusFailure:      color.New(color.FgRed),
	domain.StatusError:        color.New(color.FgYellow),
	domain.StatusCrash:        color.New(color.FgRed, color.Bold),
}

var statusMarks = map[domain.Status]string{
	domain.StatusSuccess:      ".",
	domain.StatusNotification: "N",
	domain.StatusOmission:     "O",
	domain.StatusPending:      "P",
	domain.StatusFailure:      "F",
	domain.StatusError:        "E",
	domain.StatusCrash:        "C",
}

const marksPerLine = 72

// Observe handles one event of the run.
func (c *Console) Observe(e event.Event) {
	switch {
	case e.Kind == event.StartSuite && c.verbose && e.Suite != nil:
		fmt.Fprintf(c.out, "%s\n", color.CyanString("Running %s", e.Suite.Name))
	case e.Kind == event.StartCase && c.verbose && e.Case != nil:
		fmt.Fprintf(c.out, "%s\n", color.CyanString("%s:", e.Case.Name))
	case e.Kind.IsResult() && e.Result != nil:
		c.result(*e.Result)
	case e.Kind == event.CompleteSuite:
		c.complete()
	}
}

func (c *Console) result(r domain.TestResult) {
	if r.Status() != domain.StatusSuccess {
		c.faults = append(c.faults, r)
	}
	paint := statusColors[r.Status()]
	if c.verbose {
		fmt.Fprintf(c.out, "  %s: %s", r.FullName(), paint.Sprint(r.Status().String()))
		if r.Elapsed() > 0 {
			fmt.Fprintf(c.out, " (%.3fs)", r.Elapsed().Seconds())
		}
		fmt.Fprintln(c.out)
		return
	}
	if !c.marks {
		return
	}
	paint.Fprint(c.out, statusMarks[r.Status()])
	c.column++
	if c.column == marksPerLine {
		fmt.Fprintln(c.out)
		c.column = 0
	}
}

func (c *Console) complete() {
	if c.column > 0 {
		fmt.Fprintln(c.out)
		c.column = 0
	}
	fmt.Fprintln(c.out)
	for i, r := range c.faults {
		c.printFault(i+1, r)
	}
	c.faults = nil
}

func (c *Console) printFault(n int, r domain.TestResult) {
	paint := statusColors[r.Status()]
	fmt.Fprintf(c.out, "%d) %s: %s\n", n, paint.Sprint(capitalize(r.Status().String())), r.FullName())
	if msg := r.Message(); msg != "" {
		fmt.Fprintln(c.out, indent(msg, "  "))
	}
	if loc := r.Location(); loc.File != "" || loc.Function != "" {
		fmt.Fprintf(c.out, "  %s\n", color.YellowString(loc.String()))
	}
	if out := r.Stdout(); out != "" {
		fmt.Fprintf(c.out, "  %s\n%s\n", color.CyanString("stdout:"), indent(out, "    "))
	}
	if out := r.Stderr(); out != "" {
		fmt.Fprintf(c.out, "  %s\n%s\n", color.CyanString("stderr:"), indent(out, "    "))
	}
	fmt.Fprintln(c.out)
}

// SummaryLine renders the one-line totals of a run.
func SummaryLine(s domain.Summary) string {
	return fmt.Sprintf("%d test(s), %d assertion(s), %d failure(s), %d error(s), %d pending(s), %d omission(s), %d notification(s)",
		s.Tests, s.Assertions, s.Failures, s.Errors, s.Pendings, s.Omissions, s.Notifications)
}

// PrintSummary writes the elapsed time, the totals and the pass rate.
func (c *Console) PrintSummary(s domain.Summary, crashed bool) {
	fmt.Fprintf(c.out, "Finished in %.3f seconds\n", s.Elapsed.Seconds())
	line := SummaryLine(s)
	if s.Crashes > 0 {
		line += fmt.Sprintf(", %d crash(es)", s.Crashes)
	}
	statusColors[s.Worst()].Fprintln(c.out, line)
	if crashed {
		color.New(color.FgRed, color.Bold).Fprintln(c.out, "the run crashed")
	}
	if rate, ok := passRate(s); ok {
		fmt.Fprintf(c.out, "%g%% passed\n", rate)
	}
}

func passRate(s domain.Summary) (float64, bool) {
	total := s.Successes + s.Failures + s.Errors + s.Pendings + s.Crashes
	if total == 0 {
		return 0, false
	}
	rate := float64(s.Successes) * 100 / float64(total)
	return float64(int(rate*100)) / 100, true
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
