package server

import (
	"sync"

	"github.com/viant/jsonrpc/transport"
)

// stream is one connected streaming client: its protocol handler, outbound
// queue, and teardown signal. The SSE goroutine is the only consumer of out;
// done is closed exactly once when the connection is torn down.
type stream struct {
	id      string
	handler transport.Handler
	out     chan []byte
	done    chan struct{}
	once    sync.Once
}

func newStream(id string, handler transport.Handler) *stream {
	return &stream{
		id:      id,
		handler: handler,
		out:     make(chan []byte, 8),
		done:    make(chan struct{}),
	}
}

func (s *stream) close() {
	s.once.Do(func() { close(s.done) })
}

// deliver queues a response for the client. It reports false when the stream
// is already gone, in which case the message is discarded.
func (s *stream) deliver(msg []byte) bool {
	select {
	case s.out <- msg:
		return true
	case <-s.done:
		return false
	}
}

// registry is a mutex-guarded map of live streams, safe for concurrent access.
type registry struct {
	mu      sync.RWMutex
	streams map[string]*stream
}

func newRegistry() *registry { return &registry{streams: make(map[string]*stream)} }

func (r *registry) add(s *stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[s.id] = s
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, id)
}

func (r *registry) get(id string) (*stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[id]
	return s, ok
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}
