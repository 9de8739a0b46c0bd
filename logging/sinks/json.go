package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"emberhold/server/logging"
)

// JSONSink emits newline-delimited structured events. It flushes when a
// batch fills and on an interval so crash logs stay mostly intact.
type JSONSink struct {
	mu       sync.Mutex
	writer   *bufio.Writer
	encoder  *json.Encoder
	closer   io.Closer
	maxBatch int
	pending  int
	stop     chan struct{}
	stopOnce sync.Once
}

func NewJSONSink(w io.Writer, cfg logging.JSONConfig) *JSONSink {
	if w == nil {
		w = io.Discard
	}
	maxBatch := cfg.MaxBatch
	if maxBatch < 1 || cfg.FlushInterval <= 0 {
		// Without a flush timer a partial batch would sit in the buffer
		// indefinitely, so flush every write.
		maxBatch = 1
	}
	buf := bufio.NewWriter(w)
	sink := &JSONSink{
		writer:   buf,
		encoder:  json.NewEncoder(buf),
		maxBatch: maxBatch,
		stop:     make(chan struct{}),
	}
	if closer, ok := w.(io.Closer); ok {
		sink.closer = closer
	}
	if cfg.FlushInterval > 0 {
		go sink.periodicFlush(cfg.FlushInterval)
	}
	return sink
}

// NewJSONFileSink opens (or creates) cfg.FilePath in append mode.
func NewJSONFileSink(cfg logging.JSONConfig) (*JSONSink, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("json sink requires a file path")
	}
	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewJSONSink(file, cfg), nil
}

func (s *JSONSink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Encode(event); err != nil {
		return err
	}
	s.pending++
	if s.pending >= s.maxBatch {
		return s.flushLocked()
	}
	return nil
}

func (s *JSONSink) flushLocked() error {
	s.pending = 0
	return s.writer.Flush()
}

func (s *JSONSink) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.flushLocked()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *JSONSink) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.flushLocked()
			s.mu.Unlock()
		}
	}
}
