package app_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"mpproj/internal/app"
	"mpproj/internal/config"
	"mpproj/internal/db"
	"mpproj/internal/domain"
)

func TestOpenPersistsAcrossSessions(t *testing.T) {
	for _, driver := range []string{"sqlite", "fs"} {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			ctx := context.Background()
			opts := app.Options{Workspace: dir, Driver: driver, LogOutput: io.Discard}
			ws, err := app.Open(ctx, opts)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			p, err := ws.Engine.CreateProject(ctx, "P1")
			if err != nil {
				t.Fatal(err)
			}
			if _, err := ws.Engine.AddTask(ctx, domain.NewTask(time.Now(), "A", "2024-01-01", "2024-01-02", "")); err != nil {
				t.Fatal(err)
			}
			if err := ws.Close(); err != nil {
				t.Fatal(err)
			}

			ws, err = app.Open(ctx, opts)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer ws.Close()
			cur, err := ws.Engine.Current()
			if err != nil || cur.ID != p.ID || len(cur.Tasks) != 1 {
				t.Fatalf("reopened %+v %v", cur, err)
			}
			if ws.Engine.UndoLen() != 1 {
				t.Fatalf("history lost: %d", ws.Engine.UndoLen())
			}
		})
	}
}

func TestSQLiteWorkspaceJournals(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ws, err := app.Open(ctx, app.Options{Workspace: dir, LogOutput: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()
	if ws.Events == nil {
		t.Fatalf("sqlite workspace should have a journal")
	}
	p, _ := ws.Engine.CreateProject(ctx, "P1")
	evts, err := ws.Events.List(ctx, p.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 || evts[0].Type != "project.create" {
		t.Fatalf("unexpected events %+v", evts)
	}
	if _, err := os.Stat(db.Path(dir)); err != nil {
		t.Fatalf("database not created: %v", err)
	}
}

func TestWorkspaceIsSingleWriter(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ws, err := app.Open(ctx, app.Options{Workspace: dir, Driver: "memory", LogOutput: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.Open(ctx, app.Options{Workspace: dir, Driver: "memory", LogOutput: io.Discard}); !errors.Is(err, db.ErrLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	ws.Close()
	again, err := app.Open(ctx, app.Options{Workspace: dir, Driver: "memory", LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("open after close: %v", err)
	}
	again.Close()
}

func TestOpenRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(config.Path(dir), []byte("references:\n  policy: ignore\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Open(context.Background(), app.Options{Workspace: dir, LogOutput: io.Discard}); err == nil {
		t.Fatalf("expected config error")
	}
	if _, err := app.Open(context.Background(), app.Options{Workspace: t.TempDir(), Driver: "redis", LogOutput: io.Discard}); err == nil {
		t.Fatalf("expected driver error")
	}
}
