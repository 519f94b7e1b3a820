// Package export writes project collections as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mpproj/internal/domain"
)

// Kind names an exportable collection.
type Kind string

const (
	KindCosts Kind = "costs"
	KindRisks Kind = "risks"
	KindTasks Kind = "tasks"
)

func Kinds() []Kind { return []Kind{KindCosts, KindRisks, KindTasks} }

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown export kind %q (want costs, risks or tasks)", s)
}

// FileName is the download name the collection gets for project name.
func FileName(project string, k Kind) string {
	return project + "_" + string(k) + ".csv"
}

// Write exports the k collection of p.
func Write(w io.Writer, p domain.Project, k Kind) error {
	switch k {
	case KindCosts:
		return Costs(w, p.Costs)
	case KindRisks:
		return Risks(w, p.Risks)
	case KindTasks:
		return Tasks(w, p.Tasks)
	default:
		return fmt.Errorf("unknown export kind %q", k)
	}
}

func Costs(w io.Writer, costs []domain.CostRecord) error {
	rows := make([][]string, 0, len(costs))
	for _, c := range costs {
		rows = append(rows, []string{c.Date, formatAmount(c.Amount), c.Category, c.Status, c.Note})
	}
	return writeAll(w, []string{"Date", "Amount", "Category", "Status", "Note"}, rows)
}

func Risks(w io.Writer, risks []domain.Risk) error {
	rows := make([][]string, 0, len(risks))
	for _, r := range risks {
		rows = append(rows, []string{r.ID, r.Name, r.Description, r.Impact, r.Probability, r.Status})
	}
	return writeAll(w, []string{"ID", "Title", "Description", "Impact", "Probability", "Status"}, rows)
}

func Tasks(w io.Writer, tasks []domain.Task) error {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{t.ID, t.Name, t.StartDate, t.EndDate, t.Status, strings.Join(t.AssignedTo, ";")})
	}
	return writeAll(w, []string{"ID", "Name", "Start Date", "End Date", "Status", "Assignees"}, rows)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
