// Package logbook keeps the session journal: one line per invoice created,
// saved, deleted or exported, plus storage problems. The TUI shows its tail
// under the current screen.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level tags a journal line.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const stampLayout = "2006-01-02 15:04:05"

// Logbook appends to a text file. A nil *Logbook discards everything, so
// components can hold one unconditionally.
type Logbook struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New opens the journal at path, creating its directory.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: create dir: %w", err)
	}
	return &Logbook{path: path, now: time.Now}, nil
}

// Path is the journal file, or "" for a nil logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *Logbook) Info(format string, args ...any)  { l.record(LevelInfo, format, args) }
func (l *Logbook) Warn(format string, args ...any)  { l.record(LevelWarn, format, args) }
func (l *Logbook) Error(format string, args ...any) { l.record(LevelError, format, args) }

// record writes one line. Embedded newlines are folded so every entry stays
// a single line in the panel.
func (l *Logbook) record(level Level, format string, args []any) {
	if l == nil {
		return
	}
	msg := strings.Join(strings.Fields(fmt.Sprintf(format, args...)), " ")
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "%s [%s] %s\n", l.now().Format(stampLayout), level, msg)
	_ = f.Close()
}

// Tail returns the last n lines, oldest first, and how many lines the
// journal holds in total.
func (l *Logbook) Tail(n int) ([]string, int) {
	if l == nil || n <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer f.Close()

	ring := make([]string, n)
	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if count == 0 {
		return nil, 0
	}
	if count <= n {
		return ring[:count], count
	}
	start := count % n
	return append(ring[start:], ring[:start]...), count
}
