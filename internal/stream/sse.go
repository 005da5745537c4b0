package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	dataPrefix = "data: "

	initialBufferSize = 4 * 1024
	// MaxEventSize bounds a single buffered event.
	MaxEventSize = 1024 * 1024
)

var eventDelimiter = []byte("\n\n")

// Reader decodes a server-sent event stream whose events carry JSON chunks.
type Reader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	partial strings.Builder

	done      bool
	closeOnce sync.Once
	closeErr  error
}

func NewReader(body io.ReadCloser) *Reader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, initialBufferSize), MaxEventSize)
	scanner.Split(splitEvents)
	return &Reader{body: body, scanner: scanner}
}

// splitEvents yields complete events only; trailing data without a delimiter is dropped at EOF.
func splitEvents(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, eventDelimiter); i >= 0 {
		return i + len(eventDelimiter), data[:i], nil
	}
	if atEOF && len(data) > 0 {
		slog.Debug("Dropping incomplete trailing event", slog.Int("size", len(data)))
		return len(data), nil, nil
	}
	return 0, nil, nil
}

func (r *Reader) Recv() (Chunk, error) {
	if r.done {
		return Chunk{}, io.EOF
	}

	for r.scanner.Scan() {
		event := r.scanner.Text()
		if !strings.HasPrefix(event, dataPrefix) {
			continue
		}

		var chunk Chunk
		if err := json.Unmarshal([]byte(event[len(dataPrefix):]), &chunk); err != nil {
			slog.Warn("Failed to parse stream chunk", "error", err, "event", event)
			continue
		}
		if chunk.Error != "" {
			r.done = true
			return Chunk{}, &StreamError{Partial: r.partial.String(), Err: errors.New(chunk.Error)}
		}

		r.partial.WriteString(chunk.Text)
		if chunk.Done {
			r.done = true
		}
		return chunk, nil
	}

	r.done = true
	if err := r.scanner.Err(); err != nil {
		slog.Error("Failed to read stream", "error", err)
		return Chunk{}, &StreamError{Partial: r.partial.String(), Err: err}
	}
	return Chunk{}, io.EOF
}

// Close releases the response body. It is safe to call more than once.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.done = true
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}
