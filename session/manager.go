// Package session implements the upload session: the staged file set, the
// single in-flight submission and the restored results of the last success.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/moyoez/gfpgan-client/app"
	"github.com/moyoez/gfpgan-client/fileset"
	"github.com/moyoez/gfpgan-client/notify"
	"github.com/moyoez/gfpgan-client/preview"
	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/transfer"
	"github.com/moyoez/gfpgan-client/types"
)

var (
	ErrEmptyFileSet       = errors.New("no files selected")
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
)

// Processor is the processing endpoint as seen by the session.
type Processor interface {
	Process(ctx context.Context, entries []fileset.Entry, opts types.SubmitOptions) ([]string, error)
	RemoveFile(ctx context.Context, name string) error
	Clear(ctx context.Context) error
	DownloadAll(ctx context.Context, dir string) (string, error)
	FetchArtifact(ctx context.Context, id string) ([]byte, error)
	ForgetArtifacts(ids ...string)
}

// Manager is safe for concurrent use. Notifications are delivered in the
// order the state changed. A sink may read the manager (Snapshot, Count,
// State) from Notify but must not call mutating Manager methods there.
type Manager struct {
	proc        Processor
	sink        notify.Sink
	logger      *log.Logger
	downloadDir string

	mu       sync.Mutex
	emitMu   sync.Mutex
	pending  []*types.Notification // guarded by mu, drained under emitMu
	files    *fileset.FileSet
	state    types.SubmissionState
	restored []string
	firstRun bool
	gen      uint64 // bumped by Submit and Clear; a completion from an older generation is discarded
	cancel   context.CancelFunc
}

// NewManager builds a manager from the application context.
func NewManager(a *app.Context) *Manager {
	m := New(a.Transfer, a.Previews, a.Sink, a.Logger)
	m.downloadDir = a.Config.DownloadFolder
	return m
}

func New(proc Processor, previews *preview.Registry, sink notify.Sink, logger *log.Logger) *Manager {
	if sink == nil {
		sink = notify.Discard
	}
	if logger == nil {
		logger = tool.DefaultLogger
	}
	return &Manager{
		proc:        proc,
		sink:        sink,
		logger:      logger.WithPrefix("session"),
		downloadDir: "output",
		files:       fileset.New(previews),
		state:       types.SubmissionState{Phase: types.SubmissionIdle},
		firstRun:    true,
	}
}

// commit queues ns in state order and delivers the queue. m.mu is never
// held while waiting for emitMu, so sinks run without it.
// Must be called with m.mu held; returns with it released.
func (m *Manager) commit(ns ...*types.Notification) {
	m.pending = append(m.pending, ns...)
	m.mu.Unlock()

	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	for {
		m.mu.Lock()
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, n := range batch {
			m.sink.Notify(n)
		}
	}
}

// AddFiles stages blobs. Nameless blobs are ignored; a known name is replaced in place.
func (m *Manager) AddFiles(blobs ...fileset.Blob) {
	m.mu.Lock()
	accepted := m.files.Add(blobs...)
	count := m.files.Len()
	if accepted < len(blobs) {
		m.logger.Debugf("Ignored %d file(s) without a name", len(blobs)-accepted)
	}
	m.commit(notify.SetChanged(count))
}

// RemoveFile unstages name; an absent name is a no-op but the count is still reported.
func (m *Manager) RemoveFile(name string) {
	m.mu.Lock()
	if m.files.Remove(name) {
		m.logger.Debugf("Removed %s", name)
	}
	count := m.files.Len()
	m.commit(notify.SetChanged(count))
}

// Clear releases every preview, drops the files and results, abandons an
// in-flight submission and returns to Idle.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.files.Clear()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.proc.ForgetArtifacts(m.restored...)
	m.restored = nil
	m.state = types.SubmissionState{Phase: types.SubmissionIdle}
	m.commit(notify.SetChanged(0), notify.Cleared())
}

// Submit starts the single in-flight submission of the current files.
// It fails fast with ErrSubmissionInFlight or ErrEmptyFileSet and then
// changes nothing. Otherwise the returned channel receives the terminal
// state once. Cancelling ctx is a transport failure.
func (m *Manager) Submit(ctx context.Context, opts types.SubmitOptions) (<-chan types.SubmissionState, error) {
	m.mu.Lock()
	if m.state.Phase == types.SubmissionSubmitting {
		m.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if m.files.Len() == 0 {
		m.mu.Unlock()
		return nil, ErrEmptyFileSet
	}
	entries := m.files.Snapshot()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.gen++
	gen := m.gen
	firstRun := m.firstRun
	m.state = types.SubmissionState{Phase: types.SubmissionSubmitting}
	done := make(chan types.SubmissionState, 1)
	m.commit(notify.Submitting(len(entries), firstRun))

	go m.run(runCtx, cancel, gen, entries, opts, done)
	return done, nil
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, gen uint64, entries []fileset.Entry, opts types.SubmitOptions, done chan<- types.SubmissionState) {
	defer close(done)
	defer cancel()

	id := tool.GenerateShortID()
	m.logger.Infof("[%s] Submitting %d file(s), background upscale %v", id, len(entries), opts.BackgroundUpscale)
	images, err := m.proc.Process(ctx, entries, opts)

	var final types.SubmissionState
	var n *types.Notification
	if err != nil {
		msg := failureMessage(err)
		final = types.SubmissionState{Phase: types.SubmissionFailed, Error: msg}
		n = notify.SubmissionFailed(msg)
		m.logger.Errorf("[%s] Submission failed: %v", id, err)
	} else {
		final = types.SubmissionState{Phase: types.SubmissionSucceeded, Results: append([]string(nil), images...)}
		n = notify.ResultsReady(images)
		m.logger.Infof("[%s] Submission succeeded with %d image(s)", id, len(images))
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		m.logger.Debugf("[%s] Discarding completion of an abandoned submission", id)
		done <- final
		return
	}
	m.cancel = nil
	m.state = final
	if err == nil {
		m.proc.ForgetArtifacts(m.restored...)
		m.restored = append([]string(nil), images...)
		m.firstRun = false
	}
	m.commit(n)
	done <- final
}

// failureMessage surfaces the server's detail verbatim when there is one.
func failureMessage(err error) string {
	var statusErr *transfer.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	if errors.Is(err, context.Canceled) {
		return "submission cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "submission timed out"
	}
	return err.Error()
}

func (m *Manager) State() types.SubmissionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Results = append([]string(nil), s.Results...)
	return s
}

// Restored returns the identifiers of the last successful submission.
func (m *Manager) Restored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.restored...)
}

// Files is the ordered projection of the staged files, rebuilt on every call.
func (m *Manager) Files() []fileset.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files.Snapshot()
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files.Len()
}

func (m *Manager) Snapshot() types.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.files.Len()
	s := m.state
	s.Results = append([]string(nil), s.Results...)
	return types.SessionSnapshot{
		Count:         count,
		Files:         m.files.Infos(),
		State:         s,
		Restored:      append([]string{}, m.restored...),
		SubmitEnabled: count > 0 && s.Terminal(),
		FirstRun:      m.firstRun,
	}
}

// RemoveRemote unstages name and asks the server to drop it too.
// The local removal always happens; the server error is returned.
func (m *Manager) RemoveRemote(ctx context.Context, name string) error {
	m.RemoveFile(name)
	if err := m.proc.RemoveFile(ctx, name); err != nil {
		m.logger.Warnf("Server removal of %s failed: %v", name, err)
		return err
	}
	return nil
}

// ClearRemote clears the server history, then the local session regardless of the outcome.
func (m *Manager) ClearRemote(ctx context.Context) error {
	err := m.proc.Clear(ctx)
	if err != nil {
		m.logger.Warnf("Server clear failed: %v", err)
	}
	m.Clear()
	return err
}

// DownloadAll saves the bulk archive into the download folder.
func (m *Manager) DownloadAll(ctx context.Context) (string, error) {
	if len(m.Restored()) == 0 {
		return "", fmt.Errorf("no restored images to download")
	}
	return m.proc.DownloadAll(ctx, m.downloadDir)
}

// Artifact returns the bytes of one restored image.
func (m *Manager) Artifact(ctx context.Context, id string) ([]byte, error) {
	return m.proc.FetchArtifact(ctx, id)
}

// SaveRestored fetches every restored image into dir and returns the saved paths.
func (m *Manager) SaveRestored(ctx context.Context, dir string) ([]string, error) {
	if dir == "" {
		dir = m.downloadDir
	}
	var paths []string
	for _, id := range m.Restored() {
		data, err := m.proc.FetchArtifact(ctx, id)
		if err != nil {
			return paths, fmt.Errorf("failed to fetch %s: %w", id, err)
		}
		path, err := tool.SaveStream(ctx, dir, id, bytes.NewReader(data))
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Close abandons an in-flight submission and releases every preview without notifying.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.files.Clear()
	m.state = types.SubmissionState{Phase: types.SubmissionIdle}
}
