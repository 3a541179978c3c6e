package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"gocut/internal/domain"
)

// Viewer displays the faults of a stored run.
type Viewer interface {
	View(report *domain.RunReport) error
}

// FaultViewer displays faults in an interactive TUI.
type FaultViewer struct{}

// NewFaultViewer creates a new FaultViewer
func NewFaultViewer() *FaultViewer {
	return &FaultViewer{}
}

// View lists the faults on the left and the selected fault on the right.
// R toggles a reviewed mark on the selected fault.
func (fv *FaultViewer) View(report *domain.RunReport) error {
	faults := report.Faults()
	if len(faults) == 0 {
		color.Green("✓ No test faults found!")
		return nil
	}

	reviewed := make(map[int]bool)

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)

	for i := range faults {
		list.AddItem(listItemText(faults[i], i, false), "", 0, nil)
	}

	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan).
		SetSecondaryTextColor(tview.Styles.SecondaryTextColor)

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetWordWrap(false)

	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)

	detailsContainer := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(detailsView, 0, 1, false).
		AddItem(tview.NewBox(), 2, 0, false)

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsContainer, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)

	updateHeader := func() {
		open := len(faults) - len(reviewed)
		headerView.SetText(fmt.Sprintf(" Run %s: %d fault(s), %d not reviewed | ↑↓ navigate, [yellow]R[white] mark reviewed, → details, ← back, Ctrl+C exit ",
			report.RunID, len(faults), open))
	}
	updateHeader()

	updateDetails := func() {
		index := list.GetCurrentItem()
		if index >= 0 && index < len(faults) {
			statsView.SetText(formatFaultStats(faults[index], index+1))
			detailsView.SetText(formatFaultDetails(faults[index]))
		}
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'r' || event.Rune() == 'R' {
				index := list.GetCurrentItem()
				if index >= 0 && index < len(faults) {
					if reviewed[index] {
						delete(reviewed, index)
					} else {
						reviewed[index] = true
					}
					list.SetItemText(index, listItemText(faults[index], index, reviewed[index]), "")
					updateHeader()
				}
				return nil
			}
		}
		return event
	})

	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(list)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})

	list.SetChangedFunc(func(int, string, string, rune) {
		updateDetails()
	})
	updateDetails()

	mainLayout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(flex, 0, 1, true)

	if err := app.SetRoot(mainLayout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

var statusTags = map[domain.Status]string{
	domain.StatusNotification: "[aqua]",
	domain.StatusOmission:     "[blue]",
	domain.StatusPending:      "[fuchsia]",
	domain.StatusFailure:      "[red]",
	domain.StatusError:        "[yellow]",
	domain.StatusCrash:        "[red::b]",
}

func listItemText(r domain.TestResult, index int, reviewed bool) string {
	name := r.FullName()
	if name == "" {
		name = fmt.Sprintf("Fault %d", index+1)
	}
	if reviewed {
		return fmt.Sprintf("[gray]✓ %d. %s[white]", index+1, tview.Escape(name))
	}
	return fmt.Sprintf("%s%s[white] %d. %s", statusTags[r.Status()], statusMarks[r.Status()], index+1, tview.Escape(name))
}

// formatFaultDetails formats a fault using tview color tags.
func formatFaultDetails(r domain.TestResult) string {
	var builder strings.Builder
	w := tabwriter.NewWriter(&builder, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s✗ %s: %s[white]\n\n", statusTags[r.Status()], r.Status(), tview.Escape(r.FullName()))
	if loc := r.Location(); loc.File != "" || loc.Function != "" {
		fmt.Fprintf(w, "[yellow]Location:[white] %s\n", tview.Escape(loc.String()))
	}
	if !r.Timestamp().IsZero() {
		fmt.Fprintf(w, "[yellow]Time:[white] %s\n", r.Timestamp().Format("2006-01-02 15:04:05.000"))
	}
	fmt.Fprintf(w, "\n")

	if msg := r.Message(); msg != "" {
		fmt.Fprintf(w, "[yellow]Message:[white]\n%s\n\n", tview.Escape(msg))
	}
	if out := r.Stdout(); out != "" {
		fmt.Fprintf(w, "[yellow]Stdout:[white]\n%s\n\n", tview.Escape(out))
	}
	if out := r.Stderr(); out != "" {
		fmt.Fprintf(w, "[yellow]Stderr:[white]\n%s\n", tview.Escape(out))
	}

	w.Flush()
	return builder.String()
}

func formatFaultStats(r domain.TestResult, number int) string {
	testCase := r.CaseName()
	if testCase == "" {
		testCase = "(suite)"
	}
	test := r.TestName()
	if test == "" {
		test = fmt.Sprintf("Fault %d", number)
	}
	return fmt.Sprintf("[cyan]case:[white] [yellow]%s[white]::[yellow]%s[white]\n", tview.Escape(testCase), tview.Escape(test))
}
