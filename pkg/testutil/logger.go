package testutil

import (
	"bytes"
	"io"
	"log"
	"strings"
	"sync"
)

// LogBuffer collects log output for assertions in tests.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *LogBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *LogBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

// Count returns how many logged lines contain substr.
func (l *LogBuffer) Count(substr string) int {
	n := 0
	for _, line := range strings.Split(l.String(), "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

// NewCapturingLogger returns a logger writing into a fresh LogBuffer.
func NewCapturingLogger() (*log.Logger, *LogBuffer) {
	buf := &LogBuffer{}
	return log.New(buf, "", 0), buf
}

// NewDiscardLogger returns a logger that drops everything.
func NewDiscardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
