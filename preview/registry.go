// Package preview owns the per-file preview handles handed to a UI.
//
// A handle references the bytes of one staged file so a thumbnail can be
// rendered without re-reading the selection. Every handle is owned by exactly
// one fileset entry and must be released exactly once; the registry reports
// both leaks (Live) and double releases (ErrReleased).
package preview

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/moyoez/gfpgan-client/tool"
)

var (
	ErrReleased      = errors.New("preview handle already released")
	ErrUnknownHandle = errors.New("unknown preview handle")
)

// Handle identifies one allocated preview.
type Handle string

// Source is the re-openable content a preview points at.
type Source interface {
	Open() (io.ReadCloser, error)
}

type entry struct {
	name        string
	contentType string
	src         Source
}

// releasedMemory is how many recent releases are remembered for double
// release detection. Older handles report ErrUnknownHandle instead.
const releasedMemory = 1024

// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	live      map[Handle]entry
	released  map[Handle]struct{}
	recent    []Handle // ring of the keys in released, oldest at next
	next      int
	allocated uint64
	freed     uint64
	logger    *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = tool.DefaultLogger
	}
	return &Registry{
		live:     make(map[Handle]entry),
		released: make(map[Handle]struct{}),
		logger:   logger.WithPrefix("preview"),
	}
}

// Allocate registers src and returns its new handle.
func (r *Registry) Allocate(name, contentType string, src Source) Handle {
	h := Handle(tool.GenerateRandomUUID())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[h] = entry{name: name, contentType: contentType, src: src}
	r.allocated++
	return h
}

// Release frees h. Releasing twice returns ErrReleased and is logged.
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[h]; ok {
		delete(r.live, h)
		r.remember(h)
		r.freed++
		return nil
	}
	if _, ok := r.released[h]; ok {
		r.logger.Errorf("Double release of preview handle %s", h)
		return fmt.Errorf("%w: %s", ErrReleased, h)
	}
	return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
}

func (r *Registry) remember(h Handle) {
	if len(r.recent) < releasedMemory {
		r.recent = append(r.recent, h)
	} else {
		delete(r.released, r.recent[r.next])
		r.recent[r.next] = h
		r.next = (r.next + 1) % releasedMemory
	}
	r.released[h] = struct{}{}
}

// Open returns the content behind a live handle and its MIME type.
func (r *Registry) Open(h Handle) (io.ReadCloser, string, error) {
	r.mu.Lock()
	e, ok := r.live[h]
	_, gone := r.released[h]
	r.mu.Unlock()
	if !ok {
		if gone {
			return nil, "", fmt.Errorf("%w: %s", ErrReleased, h)
		}
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	rc, err := e.src.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open preview of %s: %v", e.name, err)
	}
	return rc, e.contentType, nil
}

// Live is the number of allocated, not yet released handles.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Stats returns the lifetime allocation and release counters.
func (r *Registry) Stats() (allocated, released uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocated, r.freed
}

// ReleaseAll frees every live handle; used on teardown.
func (r *Registry) ReleaseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.live)
	for h := range r.live {
		delete(r.live, h)
		r.remember(h)
		r.freed++
	}
	if n > 0 {
		r.logger.Debugf("Released %d preview handles on teardown", n)
	}
	return n
}
