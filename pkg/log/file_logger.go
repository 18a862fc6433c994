package log

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// elogExt is the extension doc.go documents for a protocol capture file.
// NewFileLogger appends it when the caller's path carries no extension of
// its own, so "session" and "session.elog" land on the same file.
const elogExt = ".elog"

// FileLogger appends protocol events to a .elog (CBOR) file. Safe for
// concurrent use; a broken encode never returns an error since a logging
// failure must never disrupt request handling.
type FileLogger struct {
	path    string
	file    *os.File
	encoder *cbor.Encoder

	mu      sync.Mutex
	closed  bool
	written uint64
}

// NewFileLogger opens (or appends to) path, adding elogExt if path has no
// extension. The file is created with mode 0644 if absent.
func NewFileLogger(path string) (*FileLogger, error) {
	if filepath.Ext(path) == "" {
		path = strings.TrimSuffix(path, ".") + elogExt
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		path:    path,
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Log appends event to the file, silently dropping it if the encode fails
// or the logger has already been closed.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err == nil {
		l.written++
	}
}

// Path returns the file path events are being appended to, after any
// elogExt normalization.
func (l *FileLogger) Path() string { return l.path }

// Written returns the number of events successfully appended so far.
func (l *FileLogger) Written() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Close closes the log file. Safe to call more than once; Log calls after
// Close are silently ignored rather than erroring.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
