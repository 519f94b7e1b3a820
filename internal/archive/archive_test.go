package archive_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"mpproj/internal/archive"
	"mpproj/internal/domain"
)

var now = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func sampleProject() domain.Project {
	p := domain.NewProject(now, "Bridge")
	task := domain.NewTask(now, "Survey", "2024-02-01", "2024-02-05", "site survey")
	task.AssignedTo = []string{"res-1"}
	task.Attachments = []domain.AttachmentRef{{ID: "att-1", Name: "plan.pdf", Size: 3}}
	p.Tasks = []domain.Task{task}
	p.Resources = []domain.Resource{domain.NewResource(now, "Ann", "human")}
	p.Milestones = []domain.Milestone{domain.NewMilestone(now, "Kickoff", "2024-02-02", "")}
	p.Teams = []domain.Team{domain.NewTeam(now, "Core", "")}
	p.Costs = []domain.CostRecord{domain.NewCostRecord(now, task.ID)}
	p.Risks = []domain.Risk{domain.NewRisk(now, "Rain")}
	return p
}

func TestRoundTrip(t *testing.T) {
	p := sampleProject()
	pkg := archive.New(p, now, "Linux")
	pkg.Attachments = []archive.Attachment{{Name: "plan.pdf", Data: []byte("pdf")}}
	data, err := archive.Marshal(pkg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := archive.Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Assemble(), p.Clone().Normalize()) {
		t.Fatalf("assembled project differs:\n%+v\n%+v", back.Assemble(), p)
	}
	if back.Manifest != pkg.Manifest {
		t.Fatalf("manifest differs: %+v vs %+v", back.Manifest, pkg.Manifest)
	}
	if len(back.Attachments) != 1 || string(back.Attachments[0].Data) != "pdf" {
		t.Fatalf("attachments: %+v", back.Attachments)
	}
}

func TestManifestFields(t *testing.T) {
	pkg := archive.New(sampleProject(), now, "")
	m := pkg.Manifest
	if m.SchemaVersion != archive.CurrentSchema || m.FileVersion != "1.0.0" || m.CreatedWithVersion != "1.0.0" {
		t.Fatalf("unexpected manifest %+v", m)
	}
	if m.CreatedPlatform != archive.Platform() {
		t.Fatalf("platform %s", m.CreatedPlatform)
	}
	if m.CreatedAt != "2024-02-01T12:00:00.000Z" || m.UpdatedAt != m.CreatedAt {
		t.Fatalf("timestamps %s %s", m.CreatedAt, m.UpdatedAt)
	}
	if m.ProjectUUID != pkg.Project.ID {
		t.Fatalf("uuid %s vs %s", m.ProjectUUID, pkg.Project.ID)
	}
}

func TestEntriesLayout(t *testing.T) {
	data, err := archive.Marshal(archive.New(sampleProject(), now, "Linux"))
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"manifest.json", "project.json", "tasks.json", "resources.json", "milestones.json", "teams.json", "budget.json", "costs.json", "risklog.json", "attachments/"} {
		if !names[want] {
			t.Fatalf("missing entry %s in %v", want, names)
		}
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestMissingDocumentsDefault(t *testing.T) {
	data := buildZip(t, map[string]string{
		"manifest.json": `{"project_uuid":"p-1","schema_version":2,"file_version":"1.0.0"}`,
		"project.json":  `{"id":"p-1","name":"Bare"}`,
	})
	pkg, err := archive.Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pkg.Tasks == nil || len(pkg.Tasks) != 0 || pkg.Risks == nil {
		t.Fatalf("collections should default to empty: %+v", pkg)
	}
	if pkg.Budget.Currency != "TWD" || pkg.Budget.Categories == nil {
		t.Fatalf("budget default: %+v", pkg.Budget)
	}
	p := pkg.Assemble()
	if p.ID != "p-1" || p.Name != "Bare" {
		t.Fatalf("assembled %+v", p)
	}
}

func TestMigratesSchemaOneEmbeddedProject(t *testing.T) {
	data := buildZip(t, map[string]string{
		"manifest.json": `{"project_uuid":"p-9","file_version":"1.0.0","created_platform":"Web"}`,
		"project.json":  `{"id":"p-9","name":"Legacy","tasks":[{"id":"t1","name":"Old","progress":40}],"risks":null,"budget":{}}`,
		"costs.json":    `[{"id":"c1","amount":5}]`,
	})
	pkg, err := archive.Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pkg.Manifest.SchemaVersion != archive.CurrentSchema {
		t.Fatalf("schema not upgraded: %d", pkg.Manifest.SchemaVersion)
	}
	if len(pkg.Tasks) != 1 || pkg.Tasks[0].ID != "t1" {
		t.Fatalf("embedded tasks not lifted: %+v", pkg.Tasks)
	}
	if len(pkg.Costs) != 1 || pkg.Costs[0].ID != "c1" {
		t.Fatalf("separate document lost: %+v", pkg.Costs)
	}
	if pkg.Risks == nil || pkg.Budget.Currency != "TWD" {
		t.Fatalf("defaults not applied: %+v %+v", pkg.Risks, pkg.Budget)
	}
	p := pkg.Assemble()
	if p.Tasks[0].AssignedTo == nil {
		t.Fatalf("assemble should normalize nested slices")
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := archive.Unmarshal([]byte("not a zip")); !errors.Is(err, archive.ErrCorrupt) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
	bad := buildZip(t, map[string]string{"tasks.json": "{oops"})
	if _, err := archive.Unmarshal(bad); !errors.Is(err, archive.ErrCorrupt) {
		t.Fatalf("expected corrupt json error, got %v", err)
	}
	future := buildZip(t, map[string]string{"manifest.json": `{"schema_version":99}`})
	if _, err := archive.Unmarshal(future); !errors.Is(err, archive.ErrUnsupportedSchema) {
		t.Fatalf("expected unsupported schema, got %v", err)
	}
	if _, err := archive.DecodeBase64("%%%"); !errors.Is(err, archive.ErrCorrupt) {
		t.Fatalf("expected corrupt base64, got %v", err)
	}
}

func TestBase64RoundTrip(t *testing.T) {
	pkg := archive.New(sampleProject(), now, "macOS")
	s, err := archive.EncodeBase64(pkg)
	if err != nil {
		t.Fatal(err)
	}
	back, err := archive.DecodeBase64(s)
	if err != nil {
		t.Fatal(err)
	}
	if back.Project != pkg.Project || back.Manifest.CreatedPlatform != "macOS" {
		t.Fatalf("base64 round trip lost data")
	}
}

func TestRejectsUnsafeAttachmentNames(t *testing.T) {
	pkg := archive.New(sampleProject(), now, "Linux")
	pkg.Attachments = []archive.Attachment{{Name: "../escape", Data: nil}}
	if _, err := archive.Marshal(pkg); err == nil {
		t.Fatalf("expected invalid attachment name error")
	}
}

func TestNestedAttachmentsFlatten(t *testing.T) {
	data := buildZip(t, map[string]string{
		"manifest.json":             `{"project_uuid":"p-1","schema_version":2}`,
		"project.json":              `{"id":"p-1","name":"Nested"}`,
		"attachments/docs/plan.pdf": "pdf",
		"attachments/img/logo.png":  "png",
	})
	pkg, err := archive.Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(pkg.Attachments) != 2 {
		t.Fatalf("attachments %+v", pkg.Attachments)
	}
	names := map[string]string{}
	for _, a := range pkg.Attachments {
		names[a.Name] = string(a.Data)
	}
	if names["plan.pdf"] != "pdf" || names["logo.png"] != "png" {
		t.Fatalf("attachment names not flattened: %v", names)
	}
	again, err := archive.Marshal(pkg)
	if err != nil {
		t.Fatalf("decoded package should encode again: %v", err)
	}
	back, err := archive.Unmarshal(again)
	if err != nil || len(back.Attachments) != 2 {
		t.Fatalf("second round trip: %v %+v", err, back.Attachments)
	}
}
