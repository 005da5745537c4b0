// Package stream consumes incremental AI generation output.
//
// A Stream is a lazy, single-pass sequence of chunks. It cannot be restarted;
// Close releases the underlying transport and may be called on any path.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Chunk is one incremental unit of a generation response.
type Chunk struct {
	Text  string `json:"text"`
	Done  bool   `json:"done,omitempty"`
	Model string `json:"model,omitempty"`
	Error string `json:"error,omitempty"`
}

type Stream interface {
	// Recv returns the next chunk, or io.EOF once the stream is exhausted.
	Recv() (Chunk, error)
	Close() error
}

// Result is the aggregate of a fully consumed stream.
type Result struct {
	Text   string
	Model  string
	Chunks int
	Done   bool
}

// StreamError ends a stream early and keeps the text received before it.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Consume drains s, calling fn once per chunk in arrival order, and closes s on every path.
func Consume(ctx context.Context, s Stream, fn func(Chunk)) (Result, error) {
	defer s.Close()

	var (
		res     Result
		builder strings.Builder
	)
	for {
		if err := ctx.Err(); err != nil {
			return res, &StreamError{Partial: builder.String(), Err: err}
		}

		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			res.Text = builder.String()
			return res, nil
		}
		if err != nil {
			res.Text = builder.String()
			var streamErr *StreamError
			if errors.As(err, &streamErr) {
				return res, err
			}
			return res, &StreamError{Partial: res.Text, Err: err}
		}

		builder.WriteString(chunk.Text)
		res.Chunks++
		if chunk.Model != "" {
			res.Model = chunk.Model
		}
		if fn != nil {
			fn(chunk)
		}
		if chunk.Done {
			res.Done = true
			res.Text = builder.String()
			return res, nil
		}
	}
}
