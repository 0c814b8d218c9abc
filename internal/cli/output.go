package cli

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

// task reports progress on a long step: a spinner on a terminal, nothing
// otherwise.
type task struct {
	spinner *pterm.SpinnerPrinter
}

func (a *app) start(text string) *task {
	if !a.interactive {
		return &task{}
	}
	sp, err := pterm.DefaultSpinner.WithWriter(a.errOut).WithRemoveWhenDone(true).Start(text)
	if err != nil {
		return &task{}
	}
	return &task{spinner: sp}
}

func (t *task) done() {
	if t.spinner != nil {
		_ = t.spinner.Stop()
	}
}

func (a *app) success(format string, args ...any) {
	pterm.Success.WithWriter(a.out).Println(fmt.Sprintf(format, args...))
}

func (a *app) table(data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithWriter(a.out).WithData(data).Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
