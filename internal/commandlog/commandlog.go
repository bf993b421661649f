// Package commandlog writes the per-run JSON command log.
//
// The file is streamed so that an interrupted run leaves every completed
// entry on disk: Create writes the envelope head, each Append writes one
// entry, and Close writes the closing brackets. The document is valid JSON
// only after Close.
package commandlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"libconv/internal/services"
)

// ErrClosed is returned by Append and Close after the log was closed.
var ErrClosed = errors.New("command log closed")

// Argv joins a command and its arguments into one invocation.
func Argv(command string, args []string) []string {
	return append([]string{command}, args...)
}

// Entry records one processed file. Each element of Commands is one
// invocation, program first. Fields and Values are omitted for plan-only
// entries.
type Entry struct {
	FileID           int64      `json:"fileId"`
	OriginalBackup   string     `json:"originalFileBackup"`
	OriginalFileSize int64      `json:"originalFileSize"`
	NewFilePath      string     `json:"newFilePath"`
	State            string     `json:"state,omitempty"`
	Commands         [][]string `json:"commands"`
	Fields           []string   `json:"fields_array,omitempty"`
	Values           []any      `json:"values_array,omitempty"`
}

// Document is the decoded form of a closed log.
type Document struct {
	Query       string  `json:"query"`
	CommandList []Entry `json:"commandList"`
}

// Writer appends entries to a command log file.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	buf     *bufio.Writer
	entries int
	closed  bool
}

// Create truncates path and writes the envelope head carrying query.
func Create(path, query string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "commandlog", "create", path, err)
	}
	encodedQuery, err := json.Marshal(query)
	if err != nil {
		_ = file.Close()
		return nil, services.Wrap(services.ErrIO, "commandlog", "encode query", "", err)
	}
	w := &Writer{path: path, file: file, buf: bufio.NewWriter(file)}
	if err := w.write([]byte(`{"query": `), encodedQuery, []byte(`, "commandList": [`)); err != nil {
		_ = file.Close()
		return nil, err
	}
	return w, nil
}

// Path returns the log location.
func (w *Writer) Path() string { return w.path }

// Len returns the number of appended entries.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries
}

// Append writes entry and flushes it to disk.
func (w *Writer) Append(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	encoded, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrIO, "commandlog", "encode entry", fmt.Sprintf("file %d", entry.FileID), err)
	}
	sep := []byte("\n")
	if w.entries > 0 {
		sep = []byte("\n,")
	}
	if err := w.write(sep, encoded); err != nil {
		return err
	}
	w.entries++
	return nil
}

// Close writes the envelope tail and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	writeErr := w.write([]byte("\n]}"))
	if err := w.file.Close(); err != nil && writeErr == nil {
		return services.Wrap(services.ErrIO, "commandlog", "close", w.path, err)
	}
	return writeErr
}

func (w *Writer) write(chunks ...[]byte) error {
	for _, chunk := range chunks {
		if _, err := w.buf.Write(chunk); err != nil {
			return services.Wrap(services.ErrIO, "commandlog", "write", w.path, err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		return services.Wrap(services.ErrIO, "commandlog", "flush", w.path, err)
	}
	return nil
}

// Read decodes a closed command log.
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, services.Wrap(services.ErrIO, "commandlog", "read", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, services.Wrap(services.ErrIO, "commandlog", "decode", path, err)
	}
	return doc, nil
}
