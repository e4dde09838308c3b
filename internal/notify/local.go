package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Stdout prints messages, mostly useful for local runs and debugging.
type Stdout struct {
	out io.Writer
	mu  sync.Mutex
}

func NewStdout() *Stdout {
	return &Stdout{out: os.Stdout}
}

func (s *Stdout) Name() string { return "stdout" }

func (s *Stdout) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "%s\n\n%s\n", msg.Title, msg.Body); err != nil {
		return &ErrSendFailed{Channel: s.Name(), Cause: err}
	}
	return nil
}

// File appends every message as one json line to a file.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(cfg FileConfig) *File {
	return &File{path: cfg.Path}
}

func (f *File) Name() string { return "file" }

func (f *File) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return sendFailed(f.Name(), "failed to create directory %s: %v", dir, err)
		}
	}
	line, err := encodeJSON(webhookPayload{Message: msg, SentAt: time.Now().UTC()})
	if err != nil {
		return &ErrSendFailed{Channel: f.Name(), Cause: err}
	}
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &ErrSendFailed{Channel: f.Name(), Cause: err}
	}
	defer file.Close()
	if _, err := file.Write(line); err != nil {
		return &ErrSendFailed{Channel: f.Name(), Cause: err}
	}
	return nil
}
