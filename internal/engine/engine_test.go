package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"mpproj/internal/config"
	"mpproj/internal/domain"
	"mpproj/internal/engine"
	"mpproj/internal/events"
	"mpproj/internal/kv"
	"mpproj/internal/lifecycle"
	"mpproj/internal/snapshot"
)

type testEnv struct {
	Engine *engine.Engine
	Store  kv.Store
	Ctx    context.Context
	clock  time.Time
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	env := &testEnv{
		Store: kv.NewMemory(),
		Ctx:   context.Background(),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	env.Engine = engine.New(env.Store, cfg)
	env.Engine.Now = env.now
	if err := env.Engine.Load(env.Ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	return env
}

// now advances one second per call so snapshot names never collide.
func (env *testEnv) now() time.Time {
	env.clock = env.clock.Add(time.Second)
	return env.clock
}

func (env *testEnv) task(name string) domain.Task {
	return domain.NewTask(env.clock, name, "2024-01-01", "2024-01-05", "")
}

func TestProgressScenario(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProject(env.Ctx, "P1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "P1" || env.Engine.State().CurrentState != lifecycle.Untitled {
		t.Fatalf("unexpected project %+v state %+v", p, env.Engine.State())
	}
	a, err := env.Engine.AddTask(env.Ctx, env.task("Task A"))
	if err != nil {
		t.Fatal(err)
	}
	cur, _ := env.Engine.Current()
	if cur.Progress != 0 {
		t.Fatalf("progress after add %d", cur.Progress)
	}
	a.Progress = 100
	if _, err := env.Engine.UpdateTask(env.Ctx, a); err != nil {
		t.Fatal(err)
	}
	cur, _ = env.Engine.Current()
	if cur.Progress != 100 {
		t.Fatalf("progress after update %d", cur.Progress)
	}
	if err := env.Engine.DeleteTask(env.Ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	cur, _ = env.Engine.Current()
	if cur.Progress != 0 || len(cur.Tasks) != 0 {
		t.Fatalf("progress after delete %d tasks %d", cur.Progress, len(cur.Tasks))
	}
	if st := env.Engine.State(); st.CurrentState != lifecycle.Dirty || !st.HasUnsavedChanges {
		t.Fatalf("expected dirty, got %+v", st)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateProject(env.Ctx, "P1"); err != nil {
		t.Fatal(err)
	}
	before, _ := env.Engine.Current()
	a, _ := env.Engine.AddTask(env.Ctx, env.task("A"))
	b, _ := env.Engine.AddTask(env.Ctx, env.task("B"))
	a.Name = "A renamed"
	if _, err := env.Engine.UpdateTask(env.Ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	after, _ := env.Engine.Current()
	if env.Engine.UndoLen() != 4 {
		t.Fatalf("undo len %d", env.Engine.UndoLen())
	}
	for i := 0; i < 4; i++ {
		if c, err := env.Engine.Undo(env.Ctx); err != nil || c == nil {
			t.Fatalf("undo %d: %v %v", i, c, err)
		}
	}
	cur, _ := env.Engine.Current()
	if !reflect.DeepEqual(cur.Tasks, before.Tasks) {
		t.Fatalf("undo did not restore tasks: %+v", cur.Tasks)
	}
	for i := 0; i < 4; i++ {
		if _, err := env.Engine.Redo(env.Ctx); err != nil {
			t.Fatalf("redo %d: %v", i, err)
		}
	}
	cur, _ = env.Engine.Current()
	if !reflect.DeepEqual(cur.Tasks, after.Tasks) {
		t.Fatalf("redo did not restore tasks: %+v vs %+v", cur.Tasks, after.Tasks)
	}
}

func TestNewActionClearsRedo(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	env.Engine.AddTask(env.Ctx, env.task("A"))
	env.Engine.Undo(env.Ctx)
	if env.Engine.RedoLen() != 1 {
		t.Fatalf("redo len %d", env.Engine.RedoLen())
	}
	env.Engine.AddRisk(env.Ctx, domain.NewRisk(env.clock, "late vendor"))
	if env.Engine.RedoLen() != 0 {
		t.Fatalf("redo not cleared")
	}
}

func TestUndoDepthCap(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	var first domain.Task
	for i := 0; i < 51; i++ {
		task, err := env.Engine.AddTask(env.Ctx, env.task(fmt.Sprintf("T%d", i)))
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			first = task
		}
	}
	if env.Engine.UndoLen() != 50 {
		t.Fatalf("undo len %d", env.Engine.UndoLen())
	}
	undoable, _ := env.Engine.History()
	if undoable[0].TargetID() == first.ID {
		t.Fatalf("oldest entry was not evicted")
	}
}

func TestSaveClearsHistory(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	for i := 0; i < 3; i++ {
		env.Engine.AddTask(env.Ctx, env.task(fmt.Sprintf("T%d", i)))
	}
	entry, err := env.Engine.SaveProject(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Type != snapshot.TypeAuto || entry.Name == "" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if env.Engine.UndoLen() != 0 || env.Engine.RedoLen() != 0 {
		t.Fatalf("stacks not cleared")
	}
	st := env.Engine.State()
	if st.CurrentState != lifecycle.Saved || st.HasUnsavedChanges || st.IsUntitled {
		t.Fatalf("state after save %+v", st)
	}
	c, err := env.Engine.Undo(env.Ctx)
	if err != nil || c != nil {
		t.Fatalf("undo after save should be a no-op: %v %v", c, err)
	}
	cur, _ := env.Engine.Current()
	if len(cur.Tasks) != 3 {
		t.Fatalf("tasks changed by no-op undo")
	}
	recent, _ := env.Engine.RecentProjects(env.Ctx)
	if len(recent) != 1 || recent[0].IsTemporary {
		t.Fatalf("recent after save %+v", recent)
	}
}

func TestSaveFailureLeavesState(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	env.Engine.AddTask(env.Ctx, env.task("A"))
	// The store already holds more than one byte, so every write fails.
	quota, err := kv.WithQuota(env.Ctx, env.Store, 1)
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.New(quota, config.Default())
	eng.Now = env.now
	if err := eng.Load(env.Ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SaveProject(env.Ctx); !errors.Is(err, kv.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if eng.UndoLen() != 1 || eng.State().CurrentState != lifecycle.Dirty {
		t.Fatalf("failed save changed state: %d %+v", eng.UndoLen(), eng.State())
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	quota, err := kv.WithQuota(env.Ctx, env.Store, 20000)
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.New(quota, config.Default())
	eng.Now = env.now
	if err := eng.Load(env.Ctx); err != nil {
		t.Fatal(err)
	}
	notes := strings.Repeat("n", 1000)
	for i := 0; i < 100; i++ {
		before, _ := eng.Current()
		undoLen, state := eng.UndoLen(), eng.State()
		task := env.task(fmt.Sprintf("T%d", i))
		task.Notes = notes
		if _, err := eng.AddTask(env.Ctx, task); err == nil {
			continue
		} else if !errors.Is(err, kv.ErrQuotaExceeded) {
			t.Fatalf("add %d: %v", i, err)
		}
		after, err := eng.Current()
		if err != nil {
			t.Fatal(err)
		}
		if len(after.Tasks) != len(before.Tasks) {
			t.Fatalf("tasks after failed add: %d, want %d", len(after.Tasks), len(before.Tasks))
		}
		if eng.UndoLen() != undoLen || eng.State() != state {
			t.Fatalf("history or state changed: %d %+v, want %d %+v", eng.UndoLen(), eng.State(), undoLen, state)
		}
		raw, err := env.Store.Get(env.Ctx, engine.KeyProjects)
		if err != nil {
			t.Fatal(err)
		}
		var stored []domain.Project
		if err := json.Unmarshal(raw, &stored); err != nil {
			t.Fatal(err)
		}
		if len(stored) != 1 || len(stored[0].Tasks) != len(before.Tasks) {
			t.Fatalf("stored projects out of step with memory: %+v", stored)
		}
		return
	}
	t.Fatal("quota never exceeded")
}

func TestUndoWithoutProjectIsNoop(t *testing.T) {
	env := newTestEnv(t)
	if c, err := env.Engine.Undo(env.Ctx); c != nil || err != nil {
		t.Fatalf("expected no-op, got %v %v", c, err)
	}
	if _, err := env.Engine.AddTask(env.Ctx, env.task("A")); !errors.Is(err, engine.ErrNoActiveProject) {
		t.Fatalf("expected no active project, got %v", err)
	}
}

func TestUnknownIDs(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	ghost := env.task("ghost")
	if _, err := env.Engine.UpdateTask(env.Ctx, ghost); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("update unknown: %v", err)
	}
	if err := env.Engine.DeleteResource(env.Ctx, "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("delete unknown: %v", err)
	}
	a, _ := env.Engine.AddTask(env.Ctx, env.task("A"))
	if _, err := env.Engine.AddTask(env.Ctx, a); !errors.Is(err, engine.ErrExists) {
		t.Fatalf("duplicate add: %v", err)
	}
	if env.Engine.UndoLen() != 1 {
		t.Fatalf("failed mutations recorded history: %d", env.Engine.UndoLen())
	}
}

func seedReferences(t *testing.T, env *testEnv) (dep, task domain.Task, res domain.Resource) {
	t.Helper()
	env.Engine.CreateProject(env.Ctx, "P1")
	dep, _ = env.Engine.AddTask(env.Ctx, env.task("dep"))
	res, _ = env.Engine.AddResource(env.Ctx, domain.NewResource(env.clock, "Ann", "human"))
	task = env.task("main")
	task.Dependencies = []string{dep.ID}
	task.AssignedTo = []string{res.ID}
	task, err := env.Engine.AddTask(env.Ctx, task)
	if err != nil {
		t.Fatal(err)
	}
	return dep, task, res
}

func TestRejectPolicy(t *testing.T) {
	env := newTestEnv(t)
	dep, _, res := seedReferences(t, env)
	if err := env.Engine.DeleteTask(env.Ctx, dep.ID); !errors.Is(err, engine.ErrReferenced) {
		t.Fatalf("expected referenced, got %v", err)
	}
	if err := env.Engine.DeleteResource(env.Ctx, res.ID); !errors.Is(err, engine.ErrReferenced) {
		t.Fatalf("expected referenced, got %v", err)
	}
	cur, _ := env.Engine.Current()
	if len(cur.Tasks) != 2 || len(cur.Resources) != 1 {
		t.Fatalf("rejected delete changed project")
	}
}

func TestCascadePolicy(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.References.Policy = config.PolicyCascade })
	dep, task, _ := seedReferences(t, env)
	if err := env.Engine.DeleteTask(env.Ctx, dep.ID); err != nil {
		t.Fatal(err)
	}
	cur, _ := env.Engine.Current()
	if len(cur.Tasks) != 1 || len(cur.Tasks[0].Dependencies) != 0 {
		t.Fatalf("cascade did not strip dependency: %+v", cur.Tasks)
	}
	undoable, _ := env.Engine.History()
	if got := undoable[len(undoable)-1].Type(); got != "batch" {
		t.Fatalf("expected batch change, got %s", got)
	}
	if _, err := env.Engine.Undo(env.Ctx); err != nil {
		t.Fatal(err)
	}
	cur, _ = env.Engine.Current()
	if len(cur.Tasks) != 2 || cur.Tasks[0].ID != dep.ID {
		t.Fatalf("undo did not restore task order: %+v", cur.Tasks)
	}
	if !reflect.DeepEqual(cur.Tasks[1].Dependencies, task.Dependencies) {
		t.Fatalf("undo did not restore dependency: %+v", cur.Tasks[1].Dependencies)
	}
}

func TestLeavePolicy(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.References.Policy = config.PolicyLeave })
	dep, _, _ := seedReferences(t, env)
	if err := env.Engine.DeleteTask(env.Ctx, dep.ID); err != nil {
		t.Fatal(err)
	}
	cur, _ := env.Engine.Current()
	if len(cur.Tasks) != 1 || cur.Tasks[0].Dependencies[0] != dep.ID {
		t.Fatalf("leave should keep the dangling id: %+v", cur.Tasks)
	}
	issues, _ := env.Engine.Issues()
	if len(issues) == 0 {
		t.Fatalf("expected an advisory issue for the dangling dependency")
	}
}

func TestStrictUndoRejectsStaleEntry(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	env.Engine.AddTask(env.Ctx, env.task("A"))
	cur, _ := env.Engine.Current()
	cur.Tasks = []domain.Task{}
	if _, err := env.Engine.UpdateProject(env.Ctx, cur); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Undo(env.Ctx); !errors.Is(err, engine.ErrStaleHistory) {
		t.Fatalf("expected stale history, got %v", err)
	}
	if env.Engine.UndoLen() != 1 {
		t.Fatalf("stale undo consumed the entry")
	}
}

func TestSessionSurvivesReload(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.Engine.CreateProject(env.Ctx, "P1")
	env.Engine.AddTask(env.Ctx, env.task("A"))
	env.Engine.AddMilestone(env.Ctx, domain.NewMilestone(env.clock, "M1", "2024-02-01", ""))

	again := engine.New(env.Store, config.Default())
	if err := again.Load(env.Ctx); err != nil {
		t.Fatal(err)
	}
	cur, err := again.Current()
	if err != nil || cur.ID != p.ID || len(cur.Tasks) != 1 || len(cur.Milestones) != 1 {
		t.Fatalf("reloaded project %+v err %v", cur, err)
	}
	if again.UndoLen() != 2 || again.State().CurrentState != lifecycle.Dirty {
		t.Fatalf("session not restored: %d %+v", again.UndoLen(), again.State())
	}
	if _, err := again.Undo(env.Ctx); err != nil {
		t.Fatal(err)
	}
	cur, _ = again.Current()
	if len(cur.Milestones) != 0 {
		t.Fatalf("undo after reload did not revert milestone")
	}
}

func TestCorruptSessionResets(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	env.Store.Set(env.Ctx, engine.KeySession, []byte("{not json"))
	again := engine.New(env.Store, config.Default())
	if err := again.Load(env.Ctx); err != nil {
		t.Fatalf("corrupt session should not fail load: %v", err)
	}
	if again.UndoLen() != 0 {
		t.Fatalf("history not reset")
	}
}

func TestAutosave(t *testing.T) {
	env := newTestEnv(t)
	if ok, err := env.Engine.Autosave(env.Ctx); ok || err != nil {
		t.Fatalf("nothing to autosave: %v %v", ok, err)
	}
	env.Engine.CreateProject(env.Ctx, "P1")
	env.Engine.AddTask(env.Ctx, env.task("A"))
	stateBefore := env.Engine.State()
	ok, err := env.Engine.Autosave(env.Ctx)
	if err != nil || !ok {
		t.Fatalf("autosave: %v %v", ok, err)
	}
	if env.Engine.State() != stateBefore || env.Engine.UndoLen() != 1 {
		t.Fatalf("autosave touched lifecycle or history")
	}
	snaps, _ := env.Engine.ListSnapshots(env.Ctx)
	if len(snaps) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snaps))
	}
	if _, err := env.Engine.SetAutosave(env.Ctx, false); err != nil {
		t.Fatal(err)
	}
	if ok, _ := env.Engine.Autosave(env.Ctx); ok {
		t.Fatalf("autosave ran while inactive")
	}
}

func TestRunAutosaveStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	ctx, cancel := context.WithCancel(env.Ctx)
	done := make(chan struct{})
	go func() {
		env.Engine.RunAutosave(ctx, 5*time.Millisecond)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for {
		snaps, _ := env.Engine.ListSnapshots(env.Ctx)
		if len(snaps) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("autosave loop never saved")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("autosave loop did not stop")
	}
}

func TestSnapshotRestore(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.Engine.CreateProject(env.Ctx, "P1")
	env.Engine.AddTask(env.Ctx, env.task("A"))
	entry, err := env.Engine.SaveProject(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	env.Engine.AddTask(env.Ctx, env.task("B"))
	if _, err := env.Engine.RestoreSnapshot(env.Ctx, "nope"); !errors.Is(err, engine.ErrSnapshotNotFound) {
		t.Fatalf("expected snapshot not found, got %v", err)
	}
	restored, err := env.Engine.RestoreSnapshot(env.Ctx, entry.Name)
	if err != nil {
		t.Fatal(err)
	}
	if restored.ID != p.ID || len(restored.Tasks) != 1 {
		t.Fatalf("restored %+v", restored)
	}
	st := env.Engine.State()
	if st.CurrentState != lifecycle.Editing || st.OpenedFrom != lifecycle.OriginRecovery {
		t.Fatalf("state after restore %+v", st)
	}
	latest, _ := env.Engine.LatestSnapshot(env.Ctx)
	if latest == nil || latest.Name != entry.Name {
		t.Fatalf("latest %+v", latest)
	}
	if err := env.Engine.RemoveSnapshot(env.Ctx, entry.Name); err != nil {
		t.Fatal(err)
	}
	if latest, _ := env.Engine.LatestSnapshot(env.Ctx); latest != nil {
		t.Fatalf("snapshot not removed")
	}
}

func TestInitializeFromLatestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.InitializeFromLatestSnapshot(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(env.Engine.Projects()) != 1 || p.ID == "" {
		t.Fatalf("expected an untitled project")
	}
	env.Engine.AddTask(env.Ctx, env.task("A"))
	env.Engine.SaveProject(env.Ctx)

	again := engine.New(env.Store, config.Default())
	again.Now = env.now
	if err := again.Load(env.Ctx); err != nil {
		t.Fatal(err)
	}
	got, err := again.InitializeFromLatestSnapshot(env.Ctx)
	if err != nil || got.ID != p.ID || len(got.Tasks) != 1 {
		t.Fatalf("restore latest: %+v %v", got, err)
	}
}

func TestExportAndOpen(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.Engine.CreateProject(env.Ctx, "P1")
	env.Engine.AddTask(env.Ctx, env.task("A"))
	env.Engine.AddCost(env.Ctx, domain.NewCostRecord(env.clock, ""))
	var buf bytes.Buffer
	if err := env.Engine.ExportProjectFile(env.Ctx, &buf); err != nil {
		t.Fatal(err)
	}
	if env.Engine.State().CurrentState != lifecycle.Saved {
		t.Fatalf("export should mark saved")
	}

	other := newTestEnv(t)
	data := buf.Bytes()
	opened, err := other.Engine.OpenProjectFile(other.Ctx, bytes.NewReader(data), int64(len(data)), "/tmp/P1.mpproj")
	if err != nil {
		t.Fatal(err)
	}
	if opened.ID != p.ID || len(opened.Tasks) != 1 || len(opened.Costs) != 1 {
		t.Fatalf("opened %+v", opened)
	}
	recent, _ := other.Engine.RecentProjects(other.Ctx)
	if len(recent) != 1 || recent[0].FileName != "P1.mpproj" || recent[0].FilePath != "/tmp/P1.mpproj" {
		t.Fatalf("recent %+v", recent)
	}
	if _, err := other.Engine.OpenProjectFile(other.Ctx, bytes.NewReader([]byte("junk")), 4, "bad.mpproj"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRecentProjectsUpdateInPlace(t *testing.T) {
	env := newTestEnv(t)
	first, _ := env.Engine.CreateProject(env.Ctx, "first")
	for i := 0; i < 11; i++ {
		env.Engine.CreateProject(env.Ctx, fmt.Sprintf("p%d", i))
	}
	recent, _ := env.Engine.RecentProjects(env.Ctx)
	if len(recent) != 10 {
		t.Fatalf("recent not capped: %d", len(recent))
	}
	for _, r := range recent {
		if r.ProjectUUID == first.ID {
			t.Fatalf("oldest recent entry kept")
		}
	}
	top := recent[0]
	env.Engine.UseProject(env.Ctx, top.ProjectUUID)
	env.Engine.SaveProject(env.Ctx)
	again, _ := env.Engine.RecentProjects(env.Ctx)
	if len(again) != 10 || again[0].ProjectUUID != top.ProjectUUID || again[0].IsTemporary {
		t.Fatalf("recent entry not updated in place: %+v", again[0])
	}
}

func TestDeleteProjectActivatesFirst(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.Engine.CreateProject(env.Ctx, "A")
	b, _ := env.Engine.CreateProject(env.Ctx, "B")
	if err := env.Engine.DeleteProject(env.Ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	cur, err := env.Engine.Current()
	if err != nil || cur.ID != a.ID {
		t.Fatalf("expected A active, got %+v %v", cur, err)
	}
	env.Engine.DeleteProject(env.Ctx, a.ID)
	if _, err := env.Engine.Current(); !errors.Is(err, engine.ErrNoActiveProject) {
		t.Fatalf("expected no active project, got %v", err)
	}
}

func TestBudgetAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	cur, _ := env.Engine.Current()
	b := cur.Budget
	b.Spent = 50000
	if _, err := env.Engine.UpdateBudget(env.Ctx, b); err != nil {
		t.Fatal(err)
	}
	m, err := env.Engine.Metrics()
	if err != nil || m.BudgetPercentage != 50 {
		t.Fatalf("metrics %+v %v", m, err)
	}
	env.Engine.Undo(env.Ctx)
	cur, _ = env.Engine.Current()
	if cur.Budget.Spent != 0 {
		t.Fatalf("budget undo failed: %+v", cur.Budget)
	}
}

func TestCloseAndDiscard(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.CreateProject(env.Ctx, "P1")
	st, _ := env.Engine.Close(env.Ctx)
	if st.CurrentState != lifecycle.Closing {
		t.Fatalf("close %+v", st)
	}
	st, _ = env.Engine.Discard(env.Ctx)
	if st.CurrentState != lifecycle.Untitled || st.HasUnsavedChanges {
		t.Fatalf("discard %+v", st)
	}
}

type recordingJournal struct {
	types []string
}

func (j *recordingJournal) Append(_ context.Context, evtType, _, _, _ string, _ events.EventPayload) error {
	j.types = append(j.types, evtType)
	return nil
}

func TestJournalRecordsOperations(t *testing.T) {
	env := newTestEnv(t)
	j := &recordingJournal{}
	env.Engine.Journal = j
	env.Engine.CreateProject(env.Ctx, "P1")
	env.Engine.AddTask(env.Ctx, env.task("A"))
	env.Engine.Undo(env.Ctx)
	env.Engine.SaveProject(env.Ctx)
	want := []string{"project.create", "task.add", "history.undo", "project.save"}
	if !reflect.DeepEqual(j.types, want) {
		t.Fatalf("journal %v, want %v", j.types, want)
	}
}
