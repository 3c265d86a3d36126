package notify

import (
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

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

func TestFanoutDeliversToEverySink(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := NewFanout(a, nil)
	f.Add(b)
	f.Notify(SetChanged(2))
	f.Notify(nil)

	for _, r := range []*recorder{a, b} {
		if len(r.got) != 1 || r.got[0].Type != types.NotifyTypeSetChanged {
			t.Errorf("Expected one set_changed, got %+v", r.got)
		}
	}
	if a.got[0].Data["count"] != 2 {
		t.Errorf("Expected count 2, got %v", a.got[0].Data["count"])
	}
}

func TestSubmittingFirstRunHint(t *testing.T) {
	if n := Submitting(1, true); n.Message != "First run: Loading models... this will be slow." {
		t.Errorf("Unexpected first run message %q", n.Message)
	}
	if n := Submitting(1, false); n.Message == Submitting(1, true).Message {
		t.Error("Expected a different message after the first run")
	}
}

func TestSubmissionFailedCarriesServerMessage(t *testing.T) {
	n := SubmissionFailed("OOM")
	if n.Title != "An error occurred" || n.Message != "OOM" || n.Data["message"] != "OOM" {
		t.Errorf("Unexpected notification %+v", n)
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		ev   types.StatusEvent
		want string
	}{
		{types.StatusEvent{Kind: types.StatusDownloading, ModelName: "GFPGANv1.4", Percentage: 40, Speed: "2 MB/s"}, types.NotifyTypeDownloading},
		{types.StatusEvent{Kind: types.StatusCompleted, ModelName: "GFPGANv1.4"}, types.NotifyTypeCompleted},
		{types.StatusEvent{Kind: types.StatusReady}, types.NotifyTypeReady},
		{types.StatusEvent{Kind: types.StatusInfo, GPUName: "RTX 3060", HalfPrecision: true}, types.NotifyTypeInfo},
		{types.StatusEvent{Kind: types.StatusModelInitError, Message: "boom"}, types.NotifyTypeStatusError},
		{types.StatusEvent{Kind: types.StatusError, Message: "boom"}, types.NotifyTypeStatusError},
	}
	for _, tt := range tests {
		if got := FromStatus(tt.ev); got.Type != tt.want {
			t.Errorf("FromStatus(%s) = %s, want %s", tt.ev.Kind, got.Type, tt.want)
		}
	}

	n := FromStatus(tests[0].ev)
	if n.Data["percentage"] != 40 || n.Data["modelName"] != "GFPGANv1.4" {
		t.Errorf("Unexpected downloading data %+v", n.Data)
	}
}

func TestTruncateImages(t *testing.T) {
	images := make([]string, MaxNotifyImages+5)
	for i := range images {
		images[i] = "x.png"
	}
	n := ResultsReady(images)
	cut := truncateImages(n)
	if got := len(cut.Data["images"].([]string)); got != MaxNotifyImages {
		t.Errorf("Expected %d images, got %d", MaxNotifyImages, got)
	}
	if cut.Data["totalImages"] != len(images) {
		t.Errorf("Expected totalImages %d, got %v", len(images), cut.Data["totalImages"])
	}
	if len(n.Data["images"].([]string)) != len(images) {
		t.Error("Expected the original notification to be left alone")
	}
}

func TestSocketSinkForwards(t *testing.T) {
	dir, err := os.MkdirTemp("", "ns")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "n.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	defer ln.Close()

	received := make(chan types.Notification, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		lengthBuf := make([]byte, 4)
		if _, err := io.ReadFull(conn, lengthBuf); err != nil {
			return
		}
		payload := make([]byte, binary.LittleEndian.Uint32(lengthBuf))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		var n types.Notification
		if err := sonic.Unmarshal(payload, &n); err == nil {
			received <- n
		}
		conn.Write([]byte(`{"ok":true}`))
	}()

	sink := NewSocketSink(path, nil)
	defer sink.Close()
	sink.Notify(Cleared())

	select {
	case n := <-received:
		if n.Type != types.NotifyTypeCleared {
			t.Errorf("Expected cleared, got %s", n.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for the socket notification")
	}
}

func TestSendNotificationMissingSocket(t *testing.T) {
	if err := SendNotification(Cleared(), filepath.Join(t.TempDir(), "missing.sock")); err == nil {
		t.Error("Expected an error for a missing socket")
	}
}
