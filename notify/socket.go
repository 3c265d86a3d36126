package notify

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"

	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

// NotifyWriteChunkSize is the chunk size when writing payload to Unix socket (avoid large single write).
const NotifyWriteChunkSize = 32 * 1024 // 32KB

// MaxNotifyImages is the maximum number of image ids included in a socket payload.
const MaxNotifyImages = 20

var (
	// UnixSocketTimeout is the timeout for Unix socket operations
	UnixSocketTimeout = 3 * time.Second
	// socketQueueSize bounds notifications waiting for the socket writer.
	socketQueueSize = 64
)

// SocketSink forwards notifications to a local helper process over a Unix
// socket: a 4-byte little-endian length prefix, then the JSON payload.
// Delivery runs on one background writer so callers never wait on the socket
// and the order is kept. When the queue is full the notification is dropped.
type SocketSink struct {
	path   string
	queue  chan *types.Notification
	done   chan struct{}
	once   sync.Once
	logger *log.Logger
}

func NewSocketSink(path string, logger *log.Logger) *SocketSink {
	if logger == nil {
		logger = tool.DefaultLogger
	}
	s := &SocketSink{
		path:   path,
		queue:  make(chan *types.Notification, socketQueueSize),
		done:   make(chan struct{}),
		logger: logger.WithPrefix("unixsocket"),
	}
	go s.loop()
	return s
}

func (s *SocketSink) Notify(n *types.Notification) {
	if n == nil {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.queue <- n:
	default:
		s.logger.Warnf("Notification queue full, dropping %s", n.Type)
	}
}

// Close stops the writer; queued notifications are discarded.
func (s *SocketSink) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *SocketSink) loop() {
	for {
		select {
		case <-s.done:
			return
		case n := <-s.queue:
			if err := SendNotification(n, s.path); err != nil {
				s.logger.Debugf("Failed to forward %s: %v", n.Type, err)
			}
		}
	}
}

// SendNotification sends one notification via Unix Domain Socket and waits for the reply.
func SendNotification(notification *types.Notification, socketPath string) error {
	if socketPath == "" {
		return fmt.Errorf("unix socket path is empty")
	}
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return fmt.Errorf("unix socket not found: %s", socketPath)
	}

	payload, err := sonic.Marshal(truncateImages(notification))
	if err != nil {
		return fmt.Errorf("failed to serialize notification data: %v", err)
	}
	if len(payload) > NotifyWriteChunkSize {
		return fmt.Errorf("notification payload too large: %d bytes (max %d)", len(payload), NotifyWriteChunkSize)
	}

	conn, err := net.DialTimeout("unix", socketPath, UnixSocketTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to Unix socket %s: %v", socketPath, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(UnixSocketTimeout)); err != nil {
		return fmt.Errorf("failed to set deadline: %v", err)
	}

	lengthBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lengthBuf, uint32(len(payload)))
	if _, err := conn.Write(lengthBuf); err != nil {
		return fmt.Errorf("failed to write length to Unix socket: %v", err)
	}
	for off := 0; off < len(payload); {
		end := min(off+NotifyWriteChunkSize, len(payload))
		nw, err := conn.Write(payload[off:end])
		if err != nil {
			return fmt.Errorf("failed to write payload to Unix socket: %v", err)
		}
		off += nw
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read response from Unix socket: %v", err)
	}
	if n > 0 {
		var response map[string]any
		if err := sonic.Unmarshal(buf[:n], &response); err == nil {
			if errMsg, ok := response["error"].(string); ok && errMsg != "" {
				return fmt.Errorf("server returned error: %s", errMsg)
			}
		}
	}
	return nil
}

// truncateImages keeps large result lists from blowing the payload limit.
func truncateImages(n *types.Notification) *types.Notification {
	if n == nil || n.Data == nil {
		return n
	}
	images, ok := n.Data["images"].([]string)
	if !ok || len(images) <= MaxNotifyImages {
		return n
	}
	data := make(map[string]any, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["images"] = images[:MaxNotifyImages]
	data["totalImages"] = len(images)
	cp := *n
	cp.Data = data
	return &cp
}
