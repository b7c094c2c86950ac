package network

import (
	"log"
	"net"
	"sync"
	"time"

	"inputrouter/internal/protocol"
)

const mockEmitInterval = 200 * time.Millisecond

// MockUpstream stands in for the capture service during development.
// It accepts connections and streams synthetic events from two fixed
// devices so mappings and routing can be exercised end to end.
type MockUpstream struct {
	ln       net.Listener
	done     chan struct{}
	stopOnce sync.Once
}

// StartMockUpstream listens on addr and serves events to every client.
func StartMockUpstream(addr string) (*MockUpstream, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	m := &MockUpstream{ln: ln, done: make(chan struct{})}
	go m.acceptLoop()
	log.Printf("Mock upstream: Listening on %s", ln.Addr())
	return m, nil
}

// Addr returns the bound address.
func (m *MockUpstream) Addr() string {
	return m.ln.Addr().String()
}

func (m *MockUpstream) acceptLoop() {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			select {
			case <-m.done:
			default:
				log.Printf("Mock upstream: Accept error: %v", err)
			}
			return
		}
		log.Printf("Mock upstream: Client connected from %s", conn.RemoteAddr())
		go m.serve(conn)
	}
}

func (m *MockUpstream) serve(conn net.Conn) {
	defer conn.Close()

	ticker := time.NewTicker(mockEmitInterval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			line, err := protocol.EncodeEvent(mockEvent(seq))
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if _, err := conn.Write(line); err != nil {
				log.Printf("Mock upstream: Client gone: %v", err)
				return
			}
			seq++
		}
	}
}

// mockEvent emits mostly mouse movement with a keystroke every tenth
// event, cycling A through Z.
func mockEvent(seq int) protocol.Event {
	now := time.Now().UnixMilli()
	if seq%10 == 9 {
		return protocol.Keyboard{
			DeviceID:  "mock-kbd-0",
			VKey:      uint16('A' + (seq/10)%26),
			Timestamp: now,
		}
	}
	return protocol.Mouse{
		DeviceID:  "mock-mouse-0",
		DX:        int32(seq%7 - 3),
		DY:        int32(seq%5 - 2),
		Timestamp: now,
	}
}

// Stop closes the listener and all serving loops.
func (m *MockUpstream) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.ln.Close()
	})
}
