package body

import (
	"io"
	"sync"
)

const teeChunk = 32 << 10

// tee forks a single-use stream into two sides reading the same bytes. The
// source is pulled only when a reading side has nothing queued, an error
// from the source is delivered to both sides and the source is closed once
// both sides are.
//
// At most one source read is in flight. A side waiting for it gives up as
// soon as the side itself is closed, the read finishes in the background.
type tee struct {
	src io.ReadCloser

	mu      sync.Mutex
	queues  [2][][]byte
	closed  [2]bool
	closing [2]chan struct{}
	pulling chan struct{} // closed when the in-flight source read returns
	err     error
}

func newTee(src io.ReadCloser) *tee {
	return &tee{src: src, closing: [2]chan struct{}{make(chan struct{}), make(chan struct{})}}
}

func (t *tee) side(i int) io.ReadCloser {
	return &teeSide{t: t, i: i}
}

// pull returns a channel closed once fresh data or an error is available,
// starting a source read if none is running. t.mu must be held.
func (t *tee) pull() <-chan struct{} {
	if t.pulling != nil {
		return t.pulling
	}
	done := make(chan struct{})
	t.pulling = done
	go func() {
		buf := make([]byte, teeChunk)
		n, err := t.src.Read(buf)

		t.mu.Lock()
		if n > 0 {
			chunk := buf[:n:n]
			for s := range t.queues {
				if !t.closed[s] {
					t.queues[s] = append(t.queues[s], chunk)
				}
			}
		}
		if err != nil && t.err == nil {
			t.err = err
		}
		t.pulling = nil
		t.mu.Unlock()
		close(done)
	}()
	return done
}

type teeSide struct {
	t       *tee
	i       int
	pending []byte
}

func (s *teeSide) Read(p []byte) (int, error) {
	t := s.t
	for {
		t.mu.Lock()
		if t.closed[s.i] {
			t.mu.Unlock()
			return 0, io.ErrClosedPipe
		}
		if len(s.pending) == 0 && len(t.queues[s.i]) > 0 {
			s.pending = t.queues[s.i][0]
			t.queues[s.i] = t.queues[s.i][1:]
		}
		if len(s.pending) > 0 {
			n := copy(p, s.pending)
			s.pending = s.pending[n:]
			t.mu.Unlock()
			return n, nil
		}
		if err := t.err; err != nil {
			t.mu.Unlock()
			return 0, err
		}
		ready := t.pull()
		t.mu.Unlock()

		select {
		case <-ready:
		case <-t.closing[s.i]:
		}
	}
}

func (s *teeSide) Close() error {
	t := s.t
	t.mu.Lock()
	if t.closed[s.i] {
		t.mu.Unlock()
		return nil
	}
	t.closed[s.i] = true
	t.queues[s.i] = nil
	s.pending = nil
	close(t.closing[s.i])
	both := t.closed[0] && t.closed[1]
	t.mu.Unlock()
	if both {
		return t.src.Close()
	}
	return nil
}
