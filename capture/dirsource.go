package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DirSource is a sensor-driver stand-in that cycles through the JPEG
// files of a directory in name order. It exists for development and
// testing on machines without the camera hardware.
type DirSource struct {
	mu    sync.Mutex
	files []string
	next  int
}

// NewDirSource scans dir for *.jpg / *.jpeg files. It fails when the
// directory cannot be read or holds no JPEG files.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan frame directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no jpeg files in %s", dir)
	}
	sort.Strings(files)

	logrus.WithFields(logrus.Fields{
		"function": "NewDirSource",
		"dir":      dir,
		"frames":   len(files),
	}).Info("File simulation source ready")
	return &DirSource{files: files}, nil
}

// Acquire returns the next file in the cycle. An unreadable file is a
// transient failure reported as ErrNoFrame.
func (s *DirSource) Acquire(ctx context.Context) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Acquire",
			"path":     path,
			"error":    err,
		}).Warn("Frame file unreadable")
		return nil, ErrNoFrame
	}
	return NewBuffer(data, FormatJPEG, nil), nil
}
