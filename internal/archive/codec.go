package archive

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// maxEntrySize bounds a single decompressed entry.
const maxEntrySize = 256 << 20

// Encode writes pkg as a deflate zip. Documents are indented JSON.
func Encode(w io.Writer, pkg Package) error {
	zw := zip.NewWriter(w)
	docs := []struct {
		name string
		v    any
	}{
		{ManifestDoc, pkg.Manifest},
		{ProjectDoc, pkg.Project},
		{TasksDoc, orEmpty(pkg.Tasks)},
		{ResourcesDoc, orEmpty(pkg.Resources)},
		{MilestonesDoc, orEmpty(pkg.Milestones)},
		{TeamsDoc, orEmpty(pkg.Teams)},
		{BudgetDoc, pkg.Budget},
		{CostsDoc, orEmpty(pkg.Costs)},
		{RisksDoc, orEmpty(pkg.Risks)},
	}
	for _, d := range docs {
		data, err := json.MarshalIndent(d.v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", d.name, err)
		}
		if err := writeEntry(zw, d.name, data); err != nil {
			return err
		}
	}
	if _, err := zw.CreateHeader(&zip.FileHeader{Name: AttachmentDir, Method: zip.Store}); err != nil {
		return fmt.Errorf("create %s: %w", AttachmentDir, err)
	}
	for _, a := range pkg.Attachments {
		if !validAttachmentName(a.Name) {
			return fmt.Errorf("invalid attachment name %q", a.Name)
		}
		if err := writeEntry(zw, AttachmentDir+a.Name, a.Data); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// Marshal encodes pkg into memory.
func Marshal(pkg Package) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, pkg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads an archive. Each document is read on its own; a missing one
// takes its empty default. Older schemas are migrated forward.
func Decode(r io.ReaderAt, size int64) (Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Package{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	raw := &rawArchive{docs: map[string][]byte{}}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return Package{}, err
		}
		if name, ok := strings.CutPrefix(f.Name, AttachmentDir); ok {
			// Nested entries are flattened so the package can be encoded again.
			if name = path.Base(name); validAttachmentName(name) {
				raw.attachments = append(raw.attachments, Attachment{Name: name, Data: data})
			}
			continue
		}
		raw.docs[f.Name] = data
	}
	if data, ok := raw.docs[ManifestDoc]; ok {
		if err := json.Unmarshal(data, &raw.manifest); err != nil {
			return Package{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, ManifestDoc, err)
		}
	}
	if err := upgrade(raw); err != nil {
		return Package{}, err
	}
	return raw.build()
}

func validAttachmentName(name string) bool {
	return name != "" && name != "." && !strings.Contains(name, "/") && !strings.Contains(name, "..")
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorrupt, f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, f.Name, err)
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrCorrupt, f.Name, maxEntrySize)
	}
	return data, nil
}

// Unmarshal decodes an in-memory archive.
func Unmarshal(data []byte) (Package, error) {
	return Decode(bytes.NewReader(data), int64(len(data)))
}

// EncodeBase64 is the snapshot slot encoding.
func EncodeBase64(pkg Package) (string, error) {
	data, err := Marshal(pkg)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func DecodeBase64(s string) (Package, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Package{}, fmt.Errorf("%w: base64: %v", ErrCorrupt, err)
	}
	return Unmarshal(data)
}

type rawArchive struct {
	manifest    Manifest
	docs        map[string][]byte
	attachments []Attachment
}

func (r *rawArchive) build() (Package, error) {
	pkg := Package{Manifest: r.manifest, Budget: DefaultBudget()}
	targets := []struct {
		name string
		v    any
	}{
		{ProjectDoc, &pkg.Project},
		{TasksDoc, &pkg.Tasks},
		{ResourcesDoc, &pkg.Resources},
		{MilestonesDoc, &pkg.Milestones},
		{TeamsDoc, &pkg.Teams},
		{BudgetDoc, &pkg.Budget},
		{CostsDoc, &pkg.Costs},
		{RisksDoc, &pkg.Risks},
	}
	for _, t := range targets {
		data, ok := r.docs[t.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, t.v); err != nil {
			return Package{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, t.name, err)
		}
	}
	pkg.Tasks = orEmpty(pkg.Tasks)
	pkg.Resources = orEmpty(pkg.Resources)
	pkg.Milestones = orEmpty(pkg.Milestones)
	pkg.Teams = orEmpty(pkg.Teams)
	pkg.Costs = orEmpty(pkg.Costs)
	pkg.Risks = orEmpty(pkg.Risks)
	pkg.Budget.Categories = orEmpty(pkg.Budget.Categories)
	sort.Slice(r.attachments, func(i, j int) bool { return r.attachments[i].Name < r.attachments[j].Name })
	pkg.Attachments = orEmpty(r.attachments)
	return pkg, nil
}
