package ui

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"gocut/internal/domain"
	"gocut/internal/storage"
)

// Formatter prints stored runs and test listings.
type Formatter struct {
	out io.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(out io.Writer) *Formatter {
	return &Formatter{out: out}
}

var summaryRows = []struct {
	label  string
	status domain.Status
}{
	{"Successes", domain.StatusSuccess},
	{"Failures", domain.StatusFailure},
	{"Errors", domain.StatusError},
	{"Pendings", domain.StatusPending},
	{"Omissions", domain.StatusOmission},
	{"Notifications", domain.StatusNotification},
	{"Crashes", domain.StatusCrash},
}

// PrintReport renders the statistics table of a run followed by a tree of
// its faults.
func (f *Formatter) PrintReport(report domain.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	title := "Test Execution Statistics"
	if report.Suite != "" {
		title += ": " + report.Suite
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Value", Align: text.AlignRight},
	})

	s := report.Summary
	t.AppendRow(table.Row{"Run", report.RunID})
	t.AppendRow(table.Row{"Test Cases", s.Cases})
	t.AppendRow(table.Row{"Tests", s.Tests})
	t.AppendRow(table.Row{"Assertions", s.Assertions})
	t.AppendSeparator()
	for _, row := range summaryRows {
		t.AppendRow(table.Row{row.label, s.Count(row.status)})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Duration", fmt.Sprintf("%.2fs", s.Elapsed.Seconds())})
	if !report.StartedAt.IsZero() {
		t.AppendRow(table.Row{"Started", report.StartedAt.Format("2006-01-02 15:04:05")})
	}

	passed := !report.Crashed && s.Success()
	status := "PASS"
	switch {
	case !passed:
		status = "FAIL"
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case s.Pendings+s.Omissions > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}
	t.AppendFooter(table.Row{"Status", status})
	t.Render()

	fmt.Fprintln(f.out)
	faults := report.Faults()
	if len(faults) == 0 {
		fmt.Fprintln(f.out, color.GreenString("✓ All tests passed!"))
		return
	}
	fmt.Fprintln(f.out, color.RedString("✗ %d fault(s)", len(faults)))
	f.printFaultTree(faults)
}

// printFaultTree prints faults grouped by test case.
func (f *Formatter) printFaultTree(faults []domain.TestResult) {
	byCase := make(map[string][]domain.TestResult)
	for _, r := range faults {
		byCase[r.CaseName()] = append(byCase[r.CaseName()], r)
	}
	cases := make([]string, 0, len(byCase))
	for name := range byCase {
		cases = append(cases, name)
	}
	sort.Strings(cases)

	for i, name := range cases {
		lastCase := i == len(cases)-1
		branch, stem := "├── ", "│   "
		if lastCase {
			branch, stem = "└── ", "    "
		}
		if name == "" {
			name = "(suite)"
		}
		fmt.Fprintln(f.out, color.CyanString("%s%s", branch, name))

		results := byCase[cases[i]]
		for j, r := range results {
			leaf := "├── "
			if j == len(results)-1 {
				leaf = "└── "
			}
			label := r.TestName()
			if r.DataName() != "" {
				label += " (" + r.DataName() + ")"
			}
			if label == "" {
				label = "(hook)"
			}
			fmt.Fprintf(f.out, "%s%s%s %s\n", stem, leaf, statusColors[r.Status()].Sprint(statusMarks[r.Status()]), label)
		}
	}
}

// PrintTestList prints the test cases of a suite, optionally with their
// tests. Cases or tests present in failed (keyed by case name and by
// case/test) are marked with [F].
func (f *Formatter) PrintTestList(suite *domain.TestSuite, showTests bool, failed map[string]struct{}) {
	marker := func(key string) string {
		if _, ok := failed[key]; ok {
			return " " + color.RedString("[F]")
		}
		return ""
	}

	if showTests {
		fmt.Fprintln(f.out, color.GreenString("Found %d test case(s) with %d test(s):", len(suite.Cases), suite.TestCount()))
	} else {
		fmt.Fprintln(f.out, color.GreenString("Found %d test case(s):", len(suite.Cases)))
	}
	fmt.Fprintln(f.out)

	for i, tc := range suite.Cases {
		lastCase := i == len(suite.Cases)-1
		branch, stem := "├── ", "│   "
		if lastCase {
			branch, stem = "└── ", "    "
		}
		fmt.Fprintf(f.out, "%s%s%s\n", branch, color.CyanString(tc.Name), marker(tc.Name))
		if !showTests {
			continue
		}
		for j, t := range tc.Tests {
			leaf := "├── "
			if j == len(tc.Tests)-1 {
				leaf = "└── "
			}
			name := t.Name
			if t.IsIterated() {
				name += " [data]"
			}
			fmt.Fprintf(f.out, "%s%s%s%s\n", stem, leaf, color.YellowString(name), marker(tc.Name+"/"+t.Name))
		}
	}
}

// FailedKeys indexes the faults of a report by case name and by
// case/test, in the form PrintTestList expects.
func FailedKeys(report *domain.RunReport) map[string]struct{} {
	keys := make(map[string]struct{})
	if report == nil {
		return keys
	}
	for _, r := range report.Faults() {
		if !r.IsCritical() {
			continue
		}
		keys[r.CaseName()] = struct{}{}
		keys[r.CaseName()+"/"+r.TestName()] = struct{}{}
	}
	return keys
}

// PrintHistory renders recent runs, newest first.
func (f *Formatter) PrintHistory(records []storage.RunRecord) {
	if len(records) == 0 {
		fmt.Fprintln(f.out, color.YellowString("No runs recorded"))
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle("Run History")
	t.AppendHeader(table.Row{"Started", "Run", "Suite", "Tests", "Passed", "Failed", "Duration", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
	})
	for _, rec := range records {
		s := rec.Summary
		status := "PASS"
		switch {
		case rec.Crashed:
			status = "CRASH"
		case !rec.Success:
			status = "FAIL"
		}
		t.AppendRow(table.Row{
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.RunID,
			rec.Suite,
			s.Tests,
			s.Successes,
			s.Failures + s.Errors + s.Crashes,
			fmt.Sprintf("%.2fs", s.Elapsed.Seconds()),
			status,
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
