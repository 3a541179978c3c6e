package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"gocut/internal/event"
)

// ProgressBar renders run progress as a bar advanced once per completed
// test. The bar is created when the suite announces its size; a suite that
// only knows its case count advances once per completed case.
type ProgressBar struct {
	out     io.Writer
	bar     *progressbar.ProgressBar
	perCase bool

	passed int
	failed int
}

// NewProgressBar creates a progress listener writing to out.
func NewProgressBar(out io.Writer) *ProgressBar {
	return &ProgressBar{out: out}
}

func (p *ProgressBar) newBar(count int) *progressbar.ProgressBar {
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription(p.description()),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *ProgressBar) description() string {
	return color.CyanString("Running tests: ") +
		color.GreenString("[passed: %d", p.passed) +
		" | " +
		color.RedString("failed: %d]", p.failed)
}

// Observe handles one event of the run.
func (p *ProgressBar) Observe(e event.Event) {
	switch {
	case e.Kind == event.ReadySuite:
		p.passed, p.failed = 0, 0
		p.perCase = e.TotalTests == 0 && e.TotalCases > 0
		if p.perCase {
			p.bar = p.newBar(e.TotalCases)
		} else {
			p.bar = p.newBar(e.TotalTests)
		}
	case p.bar == nil:
		return
	case e.Kind == event.Success:
		p.passed++
		p.bar.Describe(p.description())
	case e.Kind.IsResult() && e.Result != nil && e.Result.IsCritical():
		p.failed++
		p.bar.Describe(p.description())
	case e.Kind == event.CompleteTest && !p.perCase:
		p.bar.Add(1)
	case e.Kind == event.CompleteCase && p.perCase:
		p.bar.Add(1)
	case e.Kind == event.CompleteSuite:
		p.bar.Finish()
		p.bar = nil
	}
}

// Counts returns the passed and failed results seen so far.
func (p *ProgressBar) Counts() (passed, failed int) {
	return p.passed, p.failed
}
