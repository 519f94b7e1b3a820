// Package snapshot keeps named archive snapshots in a kv.Store behind a
// bounded catalog.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mpproj/internal/archive"
	"mpproj/internal/domain"
	"mpproj/internal/kv"
)

const (
	IndexKey     = "project_snap_index"
	SlotPrefix   = "snapshot_"
	DefaultLimit = 50
	TypeAuto     = "Auto"
	untitled     = "Untitled"
	nameLayout   = "2006-01-02T15-04-05"
)

type Entry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"projectId"`
	CreatedAt string `json:"createdAt" format:"date-time"`
	Type      string `json:"type"`
}

type Store struct {
	KV kv.Store
	// Limit caps the catalog. Zero means DefaultLimit.
	Limit int
	Now   func() time.Time
	Log   zerolog.Logger
}

func New(store kv.Store, limit int) *Store {
	return &Store{KV: store, Limit: limit, Now: time.Now, Log: zerolog.Nop()}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) limit() int {
	if s.Limit <= 0 {
		return DefaultLimit
	}
	return s.Limit
}

// SlotKey is the kv key holding the named snapshot.
func SlotKey(name string) string {
	return SlotPrefix + name
}

// Name builds the snapshot name for a project saved at t.
func Name(projectName string, t time.Time) string {
	if projectName == "" {
		projectName = untitled
	}
	return projectName + "_" + t.UTC().Format(nameLayout)
}

// Save stores pkg under a fresh name and catalogs it. The oldest entries are
// evicted while the catalog is over its limit. The slot is written before
// the catalog, so a failed save never leaves a catalog entry without data.
func (s *Store) Save(ctx context.Context, pkg archive.Package) (Entry, error) {
	index, err := s.List(ctx)
	if err != nil {
		return Entry{}, err
	}
	now := s.now()
	name := uniqueName(index, Name(pkg.Project.Name, now))
	encoded, err := archive.EncodeBase64(pkg)
	if err != nil {
		return Entry{}, fmt.Errorf("encode snapshot %s: %w", name, err)
	}
	if err := s.KV.Set(ctx, SlotKey(name), []byte(encoded)); err != nil {
		return Entry{}, fmt.Errorf("write snapshot %s: %w", name, err)
	}
	entry := Entry{
		ID:        domain.NewID(),
		Name:      name,
		ProjectID: pkg.Project.ID,
		CreatedAt: domain.Timestamp(now),
		Type:      TypeAuto,
	}
	index = append(index, entry)
	var evicted []Entry
	for len(index) > s.limit() {
		i := oldest(index)
		evicted = append(evicted, index[i])
		index = append(index[:i:i], index[i+1:]...)
	}
	if err := s.writeIndex(ctx, index); err != nil {
		if derr := s.KV.Delete(ctx, SlotKey(name)); derr != nil {
			s.Log.Warn().Err(derr).Str("snapshot", name).Msg("orphaned snapshot slot")
		}
		return Entry{}, err
	}
	for _, e := range evicted {
		if err := s.KV.Delete(ctx, SlotKey(e.Name)); err != nil {
			s.Log.Warn().Err(err).Str("snapshot", e.Name).Msg("delete evicted snapshot slot")
			continue
		}
		s.Log.Debug().Str("snapshot", e.Name).Msg("evicted snapshot")
	}
	return entry, nil
}

// List returns the catalog in stored order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	data, err := s.KV.Get(ctx, IndexKey)
	if errors.Is(err, kv.ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot index: %w", err)
	}
	var index []Entry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode snapshot index: %w", err)
	}
	if index == nil {
		index = []Entry{}
	}
	return index, nil
}

// Load returns nil, nil when no snapshot has that name.
func (s *Store) Load(ctx context.Context, name string) (*archive.Package, error) {
	data, err := s.KV.Get(ctx, SlotKey(name))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	pkg, err := archive.DecodeBase64(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return &pkg, nil
}

// Delete drops name from the catalog and removes its slot. Unknown names
// are ignored.
func (s *Store) Delete(ctx context.Context, name string) error {
	index, err := s.List(ctx)
	if err != nil {
		return err
	}
	kept := make([]Entry, 0, len(index))
	for _, e := range index {
		if e.Name != name {
			kept = append(kept, e)
		}
	}
	if len(kept) != len(index) {
		if err := s.writeIndex(ctx, kept); err != nil {
			return err
		}
	}
	if err := s.KV.Delete(ctx, SlotKey(name)); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	return nil
}

// Latest returns the newest entry by createdAt, or nil for an empty catalog.
func (s *Store) Latest(ctx context.Context) (*Entry, error) {
	index, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return nil, nil
	}
	best := 0
	for i := range index {
		if !createdAt(index[i]).Before(createdAt(index[best])) {
			best = i
		}
	}
	e := index[best]
	return &e, nil
}

func (s *Store) writeIndex(ctx context.Context, index []Entry) error {
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode snapshot index: %w", err)
	}
	if err := s.KV.Set(ctx, IndexKey, data); err != nil {
		return fmt.Errorf("write snapshot index: %w", err)
	}
	return nil
}

func uniqueName(index []Entry, base string) string {
	taken := make(map[string]bool, len(index))
	for _, e := range index {
		taken[e.Name] = true
	}
	name := base
	for n := 2; taken[name]; n++ {
		name = fmt.Sprintf("%s-%d", base, n)
	}
	return name
}

func oldest(index []Entry) int {
	best := 0
	for i := range index {
		if createdAt(index[i]).Before(createdAt(index[best])) {
			best = i
		}
	}
	return best
}

// createdAt parses an entry timestamp; unparseable values sort first.
func createdAt(e Entry) time.Time {
	t, err := domain.ParseTimestamp(e.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
