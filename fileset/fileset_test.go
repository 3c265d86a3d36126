package fileset

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/moyoez/gfpgan-client/preview"
	"github.com/moyoez/gfpgan-client/types"
)

func TestAddKeepsInsertionOrder(t *testing.T) {
	reg := preview.NewRegistry(nil)
	s := New(reg)
	s.Add(NewBytesBlob("b.png", []byte("b")), NewBytesBlob("a.png", []byte("a")), NewBytesBlob("c.png", []byte("c")))

	if got, want := s.Names(), []string{"b.png", "a.png", "c.png"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}
	if reg.Live() != 3 {
		t.Errorf("Expected one preview per entry, got %d live", reg.Live())
	}
}

func TestAddDuplicateOverwritesInPlace(t *testing.T) {
	reg := preview.NewRegistry(nil)
	s := New(reg)
	s.Add(NewBytesBlob("a.png", []byte("old")), NewBytesBlob("b.png", []byte("b")))
	before, _ := s.Get("a.png")

	if n := s.Add(NewBytesBlob("a.png", []byte("newer"))); n != 1 {
		t.Fatalf("Expected 1 accepted blob, got %d", n)
	}
	if s.Len() != 2 {
		t.Fatalf("Expected 2 entries after duplicate add, got %d", s.Len())
	}
	if got := s.Names(); got[0] != "a.png" {
		t.Errorf("Expected a.png to keep its position, got %v", got)
	}
	after, _ := s.Get("a.png")
	if after.Content.Size() != int64(len("newer")) {
		t.Errorf("Expected the new content to win, size %d", after.Content.Size())
	}
	if after.Preview == before.Preview {
		t.Error("Expected a fresh preview handle for the replaced entry")
	}
	if err := reg.Release(before.Preview); err == nil {
		t.Error("Expected the replaced preview to be released already")
	}
	if reg.Live() != 2 {
		t.Errorf("Expected 2 live previews, got %d", reg.Live())
	}
}

func TestAddIgnoresNamelessBlobs(t *testing.T) {
	s := New(nil)
	if n := s.Add(NewBytesBlob("", []byte("x")), NewBytesBlob("  ", nil), nil); n != 0 {
		t.Errorf("Expected nameless blobs to be ignored, accepted %d", n)
	}
	if s.Len() != 0 {
		t.Errorf("Expected empty set, got %d", s.Len())
	}
}

func TestRemoveAndClearReleasePreviews(t *testing.T) {
	reg := preview.NewRegistry(nil)
	s := New(reg)
	s.Add(NewBytesBlob("a.png", nil), NewBytesBlob("b.png", nil), NewBytesBlob("c.png", nil))

	if !s.Remove("b.png") {
		t.Fatal("Expected b.png to be removed")
	}
	if s.Remove("b.png") {
		t.Error("Expected removing an absent name to report false")
	}
	if got, want := s.Names(), []string{"a.png", "c.png"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if reg.Live() != 2 {
		t.Errorf("Expected 2 live previews, got %d", reg.Live())
	}

	if n := s.Clear(); n != 2 {
		t.Errorf("Expected 2 entries cleared, got %d", n)
	}
	if reg.Live() != 0 {
		t.Errorf("Expected every preview released, %d live", reg.Live())
	}
	allocated, released := reg.Stats()
	if allocated != released {
		t.Errorf("Expected allocations == releases, got %d/%d", allocated, released)
	}
}

func TestSnapshotIsRebuilt(t *testing.T) {
	s := New(nil)
	s.Add(NewBytesBlob("a.png", nil))
	snap := s.Snapshot()
	s.Add(NewBytesBlob("b.png", nil))
	s.Remove("a.png")

	if len(snap) != 1 || snap[0].Name != "a.png" {
		t.Errorf("Expected the old snapshot to stay untouched, got %+v", snap)
	}
	fresh := s.Snapshot()
	if len(fresh) != 1 || fresh[0].Name != "b.png" {
		t.Errorf("Expected fresh snapshot [b.png], got %+v", fresh)
	}
}

func TestWriteFiles(t *testing.T) {
	s := New(nil)
	s.Add(NewBytesBlob("a.png", []byte("AAA")), NewBytesBlob("b.jpg", []byte("BB")))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := WriteFiles(context.Background(), mw, s.Snapshot()); err != nil {
		t.Fatalf("WriteFiles failed: %v", err)
	}
	mw.Close()

	mr := multipart.NewReader(&buf, mw.Boundary())
	var names []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart failed: %v", err)
		}
		if part.FormName() != types.FilesFieldName {
			t.Errorf("Expected field %s, got %s", types.FilesFieldName, part.FormName())
		}
		if mt, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type")); mt != "image/png" && mt != "image/jpeg" {
			t.Errorf("Unexpected part content type %q", mt)
		}
		names = append(names, part.FileName())
	}
	if want := []string{"a.png", "b.jpg"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Expected parts %v, got %v", want, names)
	}
}

func TestWriteFilesHonorsCancel(t *testing.T) {
	s := New(nil)
	s.Add(NewBytesBlob("a.png", []byte("AAA")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mw := multipart.NewWriter(io.Discard)
	if err := WriteFiles(ctx, mw, s.Snapshot()); err == nil {
		t.Error("Expected an error for a cancelled context")
	}
}

func TestNewFileBlob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "face.png")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := NewFileBlob(path)
	if err != nil {
		t.Fatalf("NewFileBlob failed: %v", err)
	}
	if b.Name() != "face.png" || b.Size() != 10 || b.ContentType() != "image/png" {
		t.Errorf("Unexpected blob %s %d %s", b.Name(), b.Size(), b.ContentType())
	}
	if _, err := NewFileBlob(dir); err == nil {
		t.Error("Expected an error for a directory")
	}
}
