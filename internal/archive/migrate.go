package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// migrations upgrade an archive from the keyed schema to the next one.
var migrations = map[int]func(*rawArchive) error{
	1: liftEmbeddedCollections,
}

// upgrade walks migrations until the archive reaches CurrentSchema. Archives
// without schema_version are schema 1.
func upgrade(r *rawArchive) error {
	v := r.manifest.SchemaVersion
	if v == 0 {
		v = 1
	}
	if v > CurrentSchema {
		return fmt.Errorf("%w: schema_version %d is newer than %d", ErrUnsupportedSchema, v, CurrentSchema)
	}
	for v < CurrentSchema {
		step, ok := migrations[v]
		if !ok {
			return fmt.Errorf("%w: no migration from schema %d", ErrUnsupportedSchema, v)
		}
		if err := step(r); err != nil {
			return fmt.Errorf("migrate schema %d: %w", v, err)
		}
		v++
	}
	r.manifest.SchemaVersion = v
	if r.manifest.FileVersion == "" {
		r.manifest.FileVersion = FileVersion
	}
	return nil
}

// liftEmbeddedCollections handles schema 1, where project.json carried the
// whole project. Collections it embeds fill in documents that are absent,
// and an empty budget object becomes the default budget.
func liftEmbeddedCollections(r *rawArchive) error {
	if data, ok := r.docs[ProjectDoc]; ok {
		var embedded map[string]json.RawMessage
		if err := json.Unmarshal(data, &embedded); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorrupt, ProjectDoc, err)
		}
		lift := map[string]string{
			"tasks":      TasksDoc,
			"resources":  ResourcesDoc,
			"milestones": MilestonesDoc,
			"teams":      TeamsDoc,
			"costs":      CostsDoc,
			"risks":      RisksDoc,
			"budget":     BudgetDoc,
		}
		for field, doc := range lift {
			v, ok := embedded[field]
			if !ok || isNull(v) {
				continue
			}
			if _, present := r.docs[doc]; !present {
				r.docs[doc] = v
			}
		}
	}
	for _, doc := range []string{TasksDoc, ResourcesDoc, MilestonesDoc, TeamsDoc, CostsDoc, RisksDoc} {
		if v, ok := r.docs[doc]; ok && isNull(v) {
			delete(r.docs, doc)
		}
	}
	if v, ok := r.docs[BudgetDoc]; ok {
		trimmed := bytes.TrimSpace(v)
		if isNull(trimmed) || bytes.Equal(trimmed, []byte("{}")) {
			delete(r.docs, BudgetDoc)
		}
	}
	return nil
}

func isNull(v []byte) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
