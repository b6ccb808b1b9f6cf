package logger

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"
)

// sink fans formatted lines out to every output from one goroutine, so
// handlers never block on a slow terminal or disk. The buffer is flushed
// whenever the queue runs dry, on Sync and on Close.
type sink struct {
	lines chan []byte
	syncs chan chan error
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	fail  atomic.Pointer[error]
	out   *bufio.Writer
}

func newSink(outputs []io.Writer, bufSize int) *sink {
	live := make([]io.Writer, 0, len(outputs))
	for _, w := range outputs {
		if w != nil {
			live = append(live, w)
		}
	}
	s := &sink{
		lines: make(chan []byte, 256),
		syncs: make(chan chan error),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		out:   bufio.NewWriterSize(io.MultiWriter(live...), max(bufSize, 4096)),
	}
	go s.run()
	return s
}

func (s *sink) run() {
	defer close(s.done)
	for {
		select {
		case line := <-s.lines:
			s.put(line)
			if len(s.lines) == 0 {
				s.keep(s.out.Flush())
			}
		case ack := <-s.syncs:
			s.drain()
			ack <- s.out.Flush()
		case <-s.stop:
			s.drain()
			s.keep(s.out.Flush())
			return
		}
	}
}

// drain writes the lines queued so far.
func (s *sink) drain() {
	for {
		select {
		case line := <-s.lines:
			s.put(line)
		default:
			return
		}
	}
}

func (s *sink) put(line []byte) {
	if _, err := s.out.Write(line); err != nil {
		s.keep(err)
	}
}

// keep records the first output error; later writes report it.
func (s *sink) keep(err error) {
	if err != nil {
		s.fail.CompareAndSwap(nil, &err)
	}
}

func (s *sink) err() error {
	if p := s.fail.Load(); p != nil {
		return *p
	}
	return nil
}

// Write queues a copy of p. It blocks only when the queue is full.
func (s *sink) Write(p []byte) error {
	if err := s.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := append([]byte(nil), p...)
	select {
	case s.lines <- line:
	case <-s.stop:
	}
	return nil
}

// Sync waits until every queued line reached the outputs.
func (s *sink) Sync() error {
	ack := make(chan error, 1)
	select {
	case s.syncs <- ack:
		if err := <-ack; err != nil {
			return err
		}
	case <-s.done:
	}
	return s.err()
}

// Close drains the queue and stops the writer goroutine.
func (s *sink) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return s.err()
}
