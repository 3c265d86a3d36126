package status

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/gfpgan-client/types"
)

type recorder struct {
	mu  sync.Mutex
	got []*types.Notification
}

func (r *recorder) Notify(n *types.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.Type)
	}
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// streamServer counts connections and tracks how many are open at once.
type streamServer struct {
	conns   atomic.Int32
	open    atomic.Int32
	maxOpen atomic.Int32
}

func (s *streamServer) enter() int {
	n := s.conns.Add(1)
	cur := s.open.Add(1)
	for {
		m := s.maxOpen.Load()
		if cur <= m || s.maxOpen.CompareAndSwap(m, cur) {
			break
		}
	}
	return int(n)
}

func (s *streamServer) leave() { s.open.Add(-1) }

func writeEvent(w http.ResponseWriter, payload string) {
	fmt.Fprintf(w, "data: %s\n\n", payload)
	w.(http.Flusher).Flush()
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	ss := &streamServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ss.enter()
		defer ss.leave()
		w.Header().Set("Content-Type", "text/event-stream")
		if n == 1 {
			writeEvent(w, `{"status":"downloading","model_name":"GFPGANv1.4","percentage":40,"speed":"1 MB/s"}`)
			return // drop
		}
		writeEvent(w, `{"status":"ready"}`)
		writeEvent(w, `{"status":"info","gpu_detected":"RTX 3060","half_precision":true}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	sink := &recorder{}
	ch := New(srv.URL, nil, sink, 20*time.Millisecond, nil)
	ch.Start()
	defer ch.Stop()

	waitFor(t, "four notifications", func() bool { return sink.len() >= 4 })
	want := []string{types.NotifyTypeDownloading, types.NotifyTypeReconnecting, types.NotifyTypeReady, types.NotifyTypeInfo}
	got := sink.kinds()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}

	sink.mu.Lock()
	reconnect := sink.got[1]
	sink.mu.Unlock()
	if reconnect.Data["attempt"] != 1 {
		t.Errorf("Expected attempt 1, got %v", reconnect.Data["attempt"])
	}

	waitFor(t, "open state", func() bool { return ch.State().Phase == types.ChannelOpen })
	if st := ch.State(); st.Attempt != 0 {
		t.Errorf("Expected attempt reset once open, got %d", st.Attempt)
	}
	snap := ch.Snapshot()
	if snap.Progress == nil || snap.Progress.Kind != types.StatusReady {
		t.Errorf("Expected ready as latest progress, got %+v", snap.Progress)
	}
	if snap.Device == nil || snap.Device.GPUName != "RTX 3060" {
		t.Errorf("Expected device info, got %+v", snap.Device)
	}
	if m := ss.maxOpen.Load(); m != 1 {
		t.Errorf("Expected at most one concurrent subscription, got %d", m)
	}
}

func TestChannelStartIsIdempotent(t *testing.T) {
	ss := &streamServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ss.enter()
		defer ss.leave()
		w.Header().Set("Content-Type", "text/event-stream")
		writeEvent(w, `{"status":"ready"}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ch := New(srv.URL, nil, nil, 20*time.Millisecond, nil)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.Start()
		}()
	}
	wg.Wait()
	defer ch.Stop()

	waitFor(t, "open state", func() bool { return ch.State().Phase == types.ChannelOpen })
	ch.Start()
	time.Sleep(50 * time.Millisecond)
	if n := ss.conns.Load(); n != 1 {
		t.Errorf("Expected a single subscription, server saw %d", n)
	}
	if n := ch.OpenSubscriptions(); n != 1 {
		t.Errorf("Expected 1 open subscription, got %d", n)
	}
}

func TestChannelStopDeliversNothingAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				writeEvent(w, `{"status":"downloading","model_name":"m","percentage":1}`)
			}
		}
	}))
	defer srv.Close()

	sink := &recorder{}
	ch := New(srv.URL, nil, sink, 20*time.Millisecond, nil)
	ch.Start()
	waitFor(t, "some progress", func() bool { return sink.len() > 3 })

	ch.Stop()
	after := sink.len()
	time.Sleep(50 * time.Millisecond)
	if sink.len() != after {
		t.Errorf("Expected no notification after Stop, got %d more", sink.len()-after)
	}
	if st := ch.State(); st.Phase != types.ChannelClosed {
		t.Errorf("Expected closed, got %s", st.Phase)
	}
	if ch.OpenSubscriptions() != 0 {
		t.Error("Expected no open subscription after Stop")
	}
	ch.Stop()
}

func TestChannelNeverStartedIsClosed(t *testing.T) {
	ch := New("http://127.0.0.1:1/initialize_models", nil, nil, 0, nil)
	if st := ch.State(); st.Phase != types.ChannelClosed {
		t.Errorf("Expected closed, got %s", st.Phase)
	}
	ch.Stop()
}

func TestChannelStartWhileReconnectingRetriesNow(t *testing.T) {
	ss := &streamServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ss.enter()
		defer ss.leave()
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink := &recorder{}
	ch := New(srv.URL, nil, sink, time.Hour, nil)
	ch.Start()
	defer ch.Stop()

	waitFor(t, "reconnecting", func() bool { return ch.State().Phase == types.ChannelReconnecting })
	if st := ch.State(); st.Attempt != 1 || st.Delay != time.Hour {
		t.Errorf("Unexpected reconnecting state %+v", st)
	}
	ch.Start()
	waitFor(t, "second attempt", func() bool { return ss.conns.Load() >= 2 })
	waitFor(t, "attempt 2", func() bool { return ch.State().Attempt == 2 })
}

func TestChannelDropsUnparseableMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeEvent(w, `not json`)
		writeEvent(w, `{"status":"dancing"}`)
		writeEvent(w, `{"status":"model_init_error","error_message":"CUDA out of memory"}`)
		writeEvent(w, `{"status":"ready"}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	sink := &recorder{}
	ch := New(srv.URL, nil, sink, 20*time.Millisecond, nil)
	ch.Start()
	defer ch.Stop()

	waitFor(t, "two notifications", func() bool { return sink.len() >= 2 })
	time.Sleep(20 * time.Millisecond)
	got := sink.kinds()
	if len(got) != 2 || got[0] != types.NotifyTypeStatusError || got[1] != types.NotifyTypeReady {
		t.Errorf("Expected [status_error ready], got %v", got)
	}
	if st := ch.State(); st.Phase != types.ChannelOpen {
		t.Errorf("Expected an init error to leave the channel open, got %s", st.Phase)
	}
}

func TestChannelReadsGinEventStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/initialize_models", func(c *gin.Context) {
		c.SSEvent("message", `{"status":"completed","model_name":"RealESRGAN_x2plus"}`)
		c.Writer.Flush()
		c.SSEvent("close", "done")
		c.Writer.Flush()
		<-c.Request.Context().Done()
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	sink := &recorder{}
	ch := New(srv.URL+"/initialize_models", nil, sink, 20*time.Millisecond, nil)
	ch.Start()
	defer ch.Stop()

	waitFor(t, "completed", func() bool { return sink.len() >= 1 })
	time.Sleep(20 * time.Millisecond)
	got := sink.kinds()
	if len(got) != 1 || got[0] != types.NotifyTypeCompleted {
		t.Errorf("Expected [completed], got %v", got)
	}
}
