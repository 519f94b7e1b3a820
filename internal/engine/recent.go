package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mpproj/internal/domain"
	"mpproj/internal/kv"
)

const maxRecent = 10

// RecentProject is one entry of the recently opened list.
type RecentProject struct {
	FileName    string `json:"fileName"`
	FilePath    string `json:"filePath,omitempty"`
	ProjectUUID string `json:"projectUUID"`
	IsTemporary bool   `json:"isTemporary"`
	OpenedAt    string `json:"openedAt" format:"date-time"`
}

// RecentProjects returns the list newest first.
func (e *Engine) RecentProjects(ctx context.Context) ([]RecentProject, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readRecent(ctx)
}

func (e *Engine) readRecent(ctx context.Context) ([]RecentProject, error) {
	data, err := e.kv.Get(ctx, KeyRecent)
	if errors.Is(err, kv.ErrNotFound) {
		return []RecentProject{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recent projects: %w", err)
	}
	var list []RecentProject
	if err := json.Unmarshal(data, &list); err != nil {
		e.Log.Warn().Err(err).Msg("corrupt recent projects; resetting")
		return []RecentProject{}, nil
	}
	if list == nil {
		list = []RecentProject{}
	}
	return list, nil
}

// touchRecent refreshes the entry for r.ProjectUUID in place, or puts a new
// one at the front. The list is capped at maxRecent.
func (e *Engine) touchRecent(ctx context.Context, r RecentProject) error {
	list, err := e.readRecent(ctx)
	if err != nil {
		return err
	}
	r.OpenedAt = domain.Timestamp(e.now())
	found := false
	for i := range list {
		if list[i].ProjectUUID == r.ProjectUUID {
			if r.FilePath == "" {
				r.FilePath = list[i].FilePath
			}
			list[i] = r
			found = true
			break
		}
	}
	if !found {
		list = append([]RecentProject{r}, list...)
	}
	if len(list) > maxRecent {
		list = list[:maxRecent]
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode recent projects: %w", err)
	}
	if err := e.kv.Set(ctx, KeyRecent, data); err != nil {
		return fmt.Errorf("persist recent projects: %w", err)
	}
	return nil
}
