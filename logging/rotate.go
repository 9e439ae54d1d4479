package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const filePrefix = "app-"

// RotatingWriter is an io.Writer over weekly log files. A new file is opened
// when the ISO week changes or the current one reaches maxSize; files older
// than the retention period are pruned by a background ticker.
type RotatingWriter struct {
	dir       string
	retention time.Duration
	maxSize   int64

	mu   sync.Mutex
	file *os.File
	week string
	size int64

	now  func() time.Time
	stop chan struct{}
	done chan struct{}
}

// NewRotatingWriter creates the log directory and opens the file for the current week
func NewRotatingWriter(dir string, retentionWeeks int, maxSize int64) (*RotatingWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rw := &RotatingWriter{
		dir:       dir,
		retention: time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxSize:   maxSize,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	rw.mu.Lock()
	err := rw.rotate(weekKey(rw.now()), false)
	rw.mu.Unlock()
	if err != nil {
		return nil, err
	}

	go rw.pruneLoop(24 * time.Hour)
	return rw, nil
}

// weekKey returns the ISO week as YYYY-Www
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Write appends p to the current file, rotating first when needed
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	week := weekKey(rw.now())
	switch {
	case week != rw.week:
		if err := rw.rotate(week, false); err != nil {
			return 0, err
		}
	case rw.maxSize > 0 && rw.size+int64(len(p)) > rw.maxSize && rw.size > 0:
		if err := rw.rotate(week, true); err != nil {
			return 0, err
		}
	}

	if rw.file == nil {
		return 0, fmt.Errorf("no log file available")
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// rotate opens the file to write to for week. Caller holds mu.
func (rw *RotatingWriter) rotate(week string, full bool) error {
	if rw.file != nil {
		_ = rw.file.Close()
		rw.file = nil
	}

	name := rw.pickFile(week, full)
	path := filepath.Join(rw.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	rw.file = f
	rw.week = week
	rw.size = size
	return nil
}

// pickFile returns app-<week>.log while it has room, then app-<week>_NN.log.
// full forces a new numbered file.
func (rw *RotatingWriter) pickFile(week string, full bool) string {
	base := filePrefix + week + ".log"
	if !full && rw.hasRoom(base) {
		return base
	}

	numbered, _ := filepath.Glob(filepath.Join(rw.dir, filePrefix+week+"_??.log"))
	sort.Strings(numbered)
	if len(numbered) == 0 {
		return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, 1)
	}

	last := filepath.Base(numbered[len(numbered)-1])
	if !full && rw.hasRoom(last) {
		return last
	}

	var seq int
	_, _ = fmt.Sscanf(strings.TrimPrefix(last, filePrefix+week+"_"), "%02d.log", &seq)
	return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, seq+1)
}

func (rw *RotatingWriter) hasRoom(name string) bool {
	info, err := os.Stat(filepath.Join(rw.dir, name))
	if err != nil {
		return true
	}
	return rw.maxSize <= 0 || info.Size() < rw.maxSize
}

func (rw *RotatingWriter) pruneLoop(every time.Duration) {
	defer close(rw.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rw.stop:
			return
		case <-ticker.C:
			if _, err := rw.Prune(); err != nil {
				fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
			}
		}
	}
}

// Prune deletes log files last modified before the retention cutoff and
// returns how many were removed. The file being written is kept.
func (rw *RotatingWriter) Prune() (int, error) {
	entries, err := os.ReadDir(rw.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	rw.mu.Lock()
	var current string
	if rw.file != nil {
		current = filepath.Base(rw.file.Name())
	}
	rw.mu.Unlock()

	cutoff := rw.now().Add(-rw.retention)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == current || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(rw.dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

// CurrentFile returns the path of the file being written
func (rw *RotatingWriter) CurrentFile() string {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return ""
	}
	return rw.file.Name()
}

// Close stops the prune loop and closes the current file
func (rw *RotatingWriter) Close() error {
	select {
	case <-rw.stop:
	default:
		close(rw.stop)
	}

	select {
	case <-rw.done:
	case <-time.After(time.Second):
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}
