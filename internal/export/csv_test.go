package export_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"mpproj/internal/domain"
	"mpproj/internal/export"
)

func TestCostsEscapesNotes(t *testing.T) {
	var buf bytes.Buffer
	costs := []domain.CostRecord{{Date: "2024-03-01", Amount: 1250.5, Category: "Other", Status: "paid", Note: `said "hi", left`}}
	if err := export.Costs(&buf, costs); err != nil {
		t.Fatal(err)
	}
	want := "Date,Amount,Category,Status,Note\n2024-03-01,1250.5,Other,paid,\"said \"\"hi\"\", left\"\n"
	if buf.String() != want {
		t.Fatalf("got %q\nwant %q", buf.String(), want)
	}
}

func TestTasksJoinAssignees(t *testing.T) {
	var buf bytes.Buffer
	tasks := []domain.Task{{ID: "t1", Name: "Build", StartDate: "2024-01-01", EndDate: "2024-01-03", Status: "in-progress", AssignedTo: []string{"r1", "r2"}}}
	if err := export.Tasks(&buf, tasks); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1][5] != "r1;r2" || records[0][2] != "Start Date" {
		t.Fatalf("unexpected records %v", records)
	}
}

func TestRisksRoundTripMultiline(t *testing.T) {
	var buf bytes.Buffer
	risks := []domain.Risk{{ID: "k1", Name: "Vendor", Description: "line one\nline two", Impact: "high", Probability: "low", Status: "identified"}}
	if err := export.Risks(&buf, risks); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if records[1][2] != "line one\nline two" || records[1][3] != "high" {
		t.Fatalf("unexpected row %v", records[1])
	}
}

func TestWriteByKind(t *testing.T) {
	p := domain.Project{Name: "P1", Risks: []domain.Risk{}}
	var buf bytes.Buffer
	if err := export.Write(&buf, p, export.KindRisks); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "ID,Title,Description,Impact,Probability,Status\n" {
		t.Fatalf("empty export %q", buf.String())
	}
	if _, err := export.ParseKind("budget"); err == nil {
		t.Fatalf("expected kind error")
	}
	if got := export.FileName("P1", export.KindCosts); got != "P1_costs.csv" {
		t.Fatalf("file name %s", got)
	}
}
