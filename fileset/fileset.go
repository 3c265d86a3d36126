// Package fileset keeps the authoritative, ordered set of files staged for submission.
package fileset

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/moyoez/gfpgan-client/preview"
	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

// Entry is one staged file. Preview is owned by the entry.
type Entry struct {
	Name    string
	Content Blob
	Preview preview.Handle
}

// Info is the display view of the entry.
func (e Entry) Info() types.FileInfo {
	return types.FileInfo{
		FileName: e.Name,
		Size:     e.Content.Size(),
		FileType: e.Content.ContentType(),
		Preview:  string(e.Preview),
	}
}

// FileSet maps names to entries in insertion order.
// It is not safe for concurrent use; the session manager serializes access.
type FileSet struct {
	previews *preview.Registry
	order    []string
	entries  map[string]*Entry
}

func New(previews *preview.Registry) *FileSet {
	if previews == nil {
		previews = preview.NewRegistry(nil)
	}
	return &FileSet{
		previews: previews,
		entries:  make(map[string]*Entry),
	}
}

// Add merges blobs into the set and returns how many were accepted.
// Blobs without a name are ignored. A blob whose name is already present
// replaces that entry in place and the replaced preview is released.
func (s *FileSet) Add(blobs ...Blob) int {
	accepted := 0
	for _, b := range blobs {
		if b == nil {
			continue
		}
		name := b.Name()
		if strings.TrimSpace(name) == "" {
			continue
		}
		h := s.previews.Allocate(name, b.ContentType(), b)
		if old, ok := s.entries[name]; ok {
			s.release(old)
			old.Content = b
			old.Preview = h
		} else {
			s.entries[name] = &Entry{Name: name, Content: b, Preview: h}
			s.order = append(s.order, name)
		}
		accepted++
	}
	return accepted
}

// Remove drops name and releases its preview. Absent names are a no-op.
func (s *FileSet) Remove(name string) bool {
	e, ok := s.entries[name]
	if !ok {
		return false
	}
	s.release(e)
	delete(s.entries, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear releases every preview and empties the set; it returns the number of entries dropped.
func (s *FileSet) Clear() int {
	n := len(s.order)
	for _, name := range s.order {
		s.release(s.entries[name])
	}
	s.order = nil
	s.entries = make(map[string]*Entry)
	return n
}

func (s *FileSet) release(e *Entry) {
	if e == nil || e.Preview == "" {
		return
	}
	if err := s.previews.Release(e.Preview); err != nil {
		tool.DefaultLogger.Warnf("Failed to release preview of %s: %v", e.Name, err)
	}
	e.Preview = ""
}

func (s *FileSet) Len() int {
	return len(s.order)
}

func (s *FileSet) Get(name string) (Entry, bool) {
	e, ok := s.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (s *FileSet) Names() []string {
	return append([]string(nil), s.order...)
}

// Snapshot rebuilds the ordered selection from scratch. Callers may keep it
// after the set changes; it is never patched in place.
func (s *FileSet) Snapshot() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.entries[name])
	}
	return out
}

// Infos is the display projection of Snapshot.
func (s *FileSet) Infos() []types.FileInfo {
	out := make([]types.FileInfo, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name].Info())
	}
	return out
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// WriteFiles serializes entries, in order, as one files[] part each.
func WriteFiles(ctx context.Context, mw *multipart.Writer, entries []Entry) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(types.FilesFieldName), quoteEscaper.Replace(e.Name)))
		ct := e.Content.ContentType()
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to create part for %s: %v", e.Name, err)
		}
		rc, err := e.Content.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %v", e.Name, err)
		}
		_, copyErr := tool.CopyWithContext(ctx, part, rc)
		if closeErr := rc.Close(); closeErr != nil {
			tool.DefaultLogger.Errorf("Failed to close %s: %v", e.Name, closeErr)
		}
		if copyErr != nil {
			return fmt.Errorf("failed to write %s: %w", e.Name, copyErr)
		}
	}
	return nil
}
