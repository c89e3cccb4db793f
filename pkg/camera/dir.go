package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DirSource loops over the JPEG files in a directory, in name order.
// Useful for running the service without camera hardware.
type DirSource struct {
	files [][]byte
	pace  *pacer

	mu   sync.Mutex
	next int
}

// NewDirSource loads every *.jpg / *.jpeg file in dir.
func NewDirSource(dir string, fps int) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no jpeg files in %s", dir)
	}
	sort.Strings(names)

	files := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read frame %s: %w", name, err)
		}
		files = append(files, data)
	}

	return &DirSource{files: files, pace: newPacer(fps)}, nil
}

// Len returns the number of frames in the loop.
func (s *DirSource) Len() int {
	return len(s.files)
}

// Acquire implements Source. The returned bytes are shared and read-only.
func (s *DirSource) Acquire(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pace.wait(ctx); err != nil {
		return nil, err
	}
	data := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)

	return &Frame{
		Data:      data,
		Format:    FormatJPEG,
		Timestamp: time.Now(),
	}, nil
}

// Release implements Source. Files stay loaded, so there is nothing to free.
func (s *DirSource) Release(f *Frame) {}
