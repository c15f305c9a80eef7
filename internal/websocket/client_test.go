package websocket

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConn drives the client pumps without a network socket. Reads block on
// the frames channel; closing it ends the read pump with io.EOF.
type mockConn struct {
	mu      sync.Mutex
	frames  chan []byte
	written []mockWrite
	closed  bool
}

type mockWrite struct {
	messageType int
	data        []byte
}

func newMockConn() *mockConn {
	return &mockConn{frames: make(chan []byte, 8)}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	frame, ok := <-m.frames
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, frame, nil
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, mockWrite{messageType: messageType, data: data})
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.frames)
	}
	return nil
}

func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetReadLimit(int64)                {}
func (m *mockConn) SetPongHandler(func(string) error) {}
func (m *mockConn) RemoteAddr() string                { return "test:0" }

func (m *mockConn) writes() []mockWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockWrite(nil), m.written...)
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestWritePumpWritesTextFrames(t *testing.T) {
	h := NewHub(nil)
	mc := newMockConn()
	client := NewClientWithConnection(h, mc, nil)

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	client.send <- []byte(`{"type":"refresh:started"}`)
	close(client.send)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not stop")
	}

	writes := mc.writes()
	require.Len(t, writes, 2)
	assert.Equal(t, websocket.TextMessage, writes[0].messageType)
	assert.Equal(t, `{"type":"refresh:started"}`, string(writes[0].data))
	assert.Equal(t, websocket.CloseMessage, writes[1].messageType)
	assert.True(t, mc.isClosed())
}

func TestReadPumpUnregistersOnClose(t *testing.T) {
	h := startHub(t)

	mc := newMockConn()
	client := NewClientWithConnection(h, mc, nil)
	h.Register(client)
	receiveFrame(t, client)
	require.Equal(t, 1, h.ClientCount())

	done := make(chan struct{})
	go func() {
		client.ReadPump()
		close(done)
	}()

	mc.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not stop")
	}

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestReadPumpAcceptsHeartbeats(t *testing.T) {
	h := startHub(t)

	mc := newMockConn()
	client := NewClientWithConnection(h, mc, nil)
	h.Register(client)
	receiveFrame(t, client)

	done := make(chan struct{})
	go func() {
		client.ReadPump()
		close(done)
	}()

	mc.frames <- []byte(heartbeat)
	mc.frames <- []byte(`{"type":"something-else"}`)
	mc.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not stop")
	}

	assert.Equal(t, int64(2), client.messagesReceived)
}
