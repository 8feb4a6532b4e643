// internal/report/render.go
// Package report renders and exports model comparisons.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mwiater/cardia/internal/evaluation"
	"github.com/mwiater/cardia/internal/patient"
	"github.com/mwiater/cardia/internal/util"
)

// maxReasonRunes caps failure reasons in the ranking output.
const maxReasonRunes = 120

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	bestStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Padding(0, 1)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	badgeStyle   = lipgloss.NewStyle().Background(lipgloss.Color("229")).Foreground(lipgloss.Color("0")).Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	printer = message.NewPrinter(language.English)
)

func percent(v float64) string { return fmt.Sprintf("%.2f%%", v*100) }

func count(n int) string { return printer.Sprintf("%d", n) }

func newTable(highlight int) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == highlight:
				return bestStyle
			default:
				return cellStyle
			}
		})
}

// RenderSummary describes the test set in one line.
func RenderSummary(s evaluation.Summary) string {
	return mutedStyle.Render(fmt.Sprintf("Test set: %s patients, %d classes, dominant class %s (%s), mean age %.1f",
		count(s.Rows), len(s.Classes), patient.DescribeTarget(s.Dominant), percent(s.DominantShare), s.MeanAge))
}

// RenderRanking renders the ranked comparison table followed by the best
// model and any artifacts that were skipped.
func RenderRanking(cmp *evaluation.Comparison, summary evaluation.Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Model comparison"))
	b.WriteString("\n")
	b.WriteString(RenderSummary(summary))
	b.WriteString("\n")

	t := newTable(0).Headers("#", "Model", "File", "Accuracy", "Precision", "Recall", "F1")
	for i, ev := range cmp.Ranked {
		m := ev.Metrics
		t.Row(strconv.Itoa(i+1), ev.Label, ev.File, percent(m.Accuracy), percent(m.Precision), percent(m.Recall), percent(m.F1))
	}
	b.WriteString(t.String())
	b.WriteString("\n")

	if best, ok := cmp.Best(); ok {
		b.WriteString(badgeStyle.Render("Best model"))
		fmt.Fprintf(&b, " %s (F1 %s)\n", best.Label, percent(best.Metrics.F1))
	}

	if len(cmp.Failures) > 0 {
		b.WriteString(failureStyle.Render(fmt.Sprintf("Skipped %d artifact(s):", len(cmp.Failures))))
		b.WriteString("\n")
		for _, f := range cmp.Failures {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", f.File, f.Label, util.TruncateRunes(f.Reason, maxReasonRunes))
		}
	}
	return b.String()
}

// RenderDetail renders the per-class report and the confusion matrix for one
// model. Matrix cells are raw counts.
func RenderDetail(ev *evaluation.Evaluation) string {
	var b strings.Builder
	m := ev.Metrics
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", ev.Label, ev.File)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Accuracy %s, weighted F1 %s\n", percent(m.Accuracy), percent(m.F1))

	rep := newTable(-2).Headers("Class", "Precision", "Recall", "F1", "Support")
	for _, c := range m.Report.Classes {
		rep.Row(className(c.Label), percent(c.Precision), percent(c.Recall), percent(c.F1), count(c.Support))
	}
	rep.Row("accuracy", "", "", percent(m.Report.Accuracy), count(m.Report.Weighted.Support))
	for _, agg := range []struct {
		name string
		s    evaluation.ClassScores
	}{{"macro avg", m.Report.Macro}, {"weighted avg", m.Report.Weighted}} {
		rep.Row(agg.name, percent(agg.s.Precision), percent(agg.s.Recall), percent(agg.s.F1), count(agg.s.Support))
	}
	b.WriteString(rep.String())
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("Confusion matrix (rows: actual, columns: predicted)"))
	b.WriteString("\n")
	headers := []string{""}
	for _, l := range m.Labels {
		headers = append(headers, className(l))
	}
	cm := newTable(-2).Headers(headers...)
	for i, l := range m.Labels {
		row := []string{className(l)}
		for _, n := range m.Confusion[i] {
			row = append(row, count(n))
		}
		cm.Row(row...)
	}
	b.WriteString(cm.String())
	b.WriteString("\n")
	return b.String()
}

func className(label int) string {
	name := patient.DescribeTarget(label)
	if name == strconv.Itoa(label) {
		return name
	}
	return fmt.Sprintf("%d %s", label, name)
}
