// Package report writes per-cell feature diagnostics and sync trajectories
// and renders trajectory charts.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Sink stores named report files.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
}

// DirSink writes reports below a local directory.
type DirSink struct {
	Dir string
}

func (s DirSink) Put(_ context.Context, name string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("report name is required")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, name), data, 0o644)
}

// MemorySink keeps reports in memory.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

func (s *MemorySink) Put(_ context.Context, name string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("report name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
	return nil
}

func (s *MemorySink) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Names lists the stored reports in lexical order.
func (s *MemorySink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
