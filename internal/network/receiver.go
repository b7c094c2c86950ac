// Package network maintains the persistent TCP connection to the
// upstream capture service and turns its byte stream into events.
package network

import (
	"io"
	"log"
	"net"
	"sync"
	"time"

	"inputrouter/internal/protocol"
)

const (
	dialTimeout    = 5 * time.Second
	readTimeout    = 1 * time.Second
	readBufferSize = 4096
)

// Receiver dials the upstream service and keeps redialing until stopped.
// Decoded events are handed to OnEvent one at a time, in arrival order.
type Receiver struct {
	addr           string
	reconnectDelay time.Duration
	done           chan struct{}
	stopOnce       sync.Once

	// OnEvent is called for each decoded event. Set before Start.
	OnEvent func(protocol.Event)

	mu          sync.Mutex
	isConnected bool
}

// NewReceiver creates a receiver for the upstream at addr ("ip:port").
func NewReceiver(addr string, reconnectDelay time.Duration) *Receiver {
	return &Receiver{
		addr:           addr,
		reconnectDelay: reconnectDelay,
		done:           make(chan struct{}),
	}
}

// Start begins the connect loop.
func (r *Receiver) Start() {
	go r.loop()
}

func (r *Receiver) loop() {
	for {
		r.connect()

		// If connect returns, the connection dropped. Wait and retry.
		select {
		case <-r.done:
			return
		case <-time.After(r.reconnectDelay):
			log.Println("Upstream: Attempting reconnection...")
		}
	}
}

func (r *Receiver) connect() {
	log.Printf("Upstream: Connecting to %s", r.addr)

	conn, err := net.DialTimeout("tcp", r.addr, dialTimeout)
	if err != nil {
		log.Printf("Upstream: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	r.setConnected(true)
	defer r.setConnected(false)

	log.Printf("Upstream: Connected to %s", r.addr)
	r.readLoop(conn)
}

// readLoop reads with a short deadline so Stop is honored even while the
// upstream is silent.
func (r *Receiver) readLoop(conn net.Conn) {
	dec := protocol.NewStreamDecoder()
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-r.done:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := conn.Read(buf)
		if n > 0 {
			for _, res := range dec.Feed(buf[:n]) {
				if res.Err != nil {
					log.Printf("Upstream: Skipping line: %v", res.Err)
					continue
				}
				if r.OnEvent != nil {
					r.OnEvent(res.Event)
				}
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if err == io.EOF {
				log.Println("Upstream: Connection closed by host")
			} else {
				log.Printf("Upstream: Read error: %v", err)
			}
			return
		}
	}
}

func (r *Receiver) setConnected(v bool) {
	r.mu.Lock()
	r.isConnected = v
	r.mu.Unlock()
}

// IsConnected reports whether a connection is currently up.
func (r *Receiver) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isConnected
}

// Stop ends the connect loop. The active read unwinds within the read
// timeout.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}
