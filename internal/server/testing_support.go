package server

import (
	"net"
	"testing"
	"time"

	"kestrel/internal/directory"
	"kestrel/internal/imap"
	"kestrel/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// MockConn implements net.Conn for testing
type MockConn struct {
	readBuffer  []byte
	writeBuffer []byte
	readPos     int
	closed      bool
}

func NewMockConn() *MockConn {
	return &MockConn{
		readBuffer:  make([]byte, 0),
		writeBuffer: make([]byte, 0),
	}
}

func (m *MockConn) Read(b []byte) (int, error) {
	if m.readPos >= len(m.readBuffer) {
		return 0, net.ErrClosed
	}
	n := copy(b, m.readBuffer[m.readPos:])
	m.readPos += n
	return n, nil
}

func (m *MockConn) Write(b []byte) (int, error) {
	m.writeBuffer = append(m.writeBuffer, b...)
	return len(b), nil
}

func (m *MockConn) Close() error {
	m.closed = true
	return nil
}

func (m *MockConn) LocalAddr() net.Addr  { return nil }
func (m *MockConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 54321} }
func (m *MockConn) SetDeadline(t time.Time) error      { return nil }
func (m *MockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *MockConn) SetWriteDeadline(t time.Time) error { return nil }

func (m *MockConn) GetWrittenData() string {
	return string(m.writeBuffer)
}

func (m *MockConn) ClearWriteBuffer() {
	m.writeBuffer = m.writeBuffer[:0]
}

func (m *MockConn) AddReadData(data string) {
	m.readBuffer = append(m.readBuffer, []byte(data)...)
}

// SetupTestServer creates a test IMAP server backed by SQLite databases in a
// temporary directory, with a single test user already provisioned.
func SetupTestServer(t *testing.T) (*IMAPServer, func()) {
	tmpDir := t.TempDir()

	mgr, err := store.NewManager(tmpDir)
	if err != nil {
		t.Fatalf("Failed to initialize store manager: %v", err)
	}

	st := store.New(mgr, nil)
	dir := directory.New(mgr.SharedDB(), "test-secret")
	if err := dir.CreateUser("testuser", "testpass"); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	engine := imap.NewEngine(st, imap.NewRegistry(st), dir)
	srv := NewIMAPServer(engine)

	cleanup := func() {
		mgr.Close()
	}
	return srv, cleanup
}
