package stream

import (
	"context"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Simulated emulates incremental arrival of an already complete text.
// It is the streaming mode of transports that cannot hold a response open.
type Simulated struct {
	ctx     context.Context
	cancel  context.CancelFunc
	pieces  []string
	next    int
	model   string
	limiter *rate.Limiter
}

// Simulate splits text on single spaces and yields one piece per Recv, pacing pieces by delay.
// Concatenating all pieces reproduces text exactly.
func Simulate(ctx context.Context, text, model string, delay time.Duration) *Simulated {
	ctx, cancel := context.WithCancel(ctx)

	var pieces []string
	if text != "" {
		words := strings.Split(text, " ")
		pieces = make([]string, len(words))
		for i, w := range words {
			if i < len(words)-1 {
				w += " "
			}
			pieces[i] = w
		}
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Simulated{
		ctx:     ctx,
		cancel:  cancel,
		pieces:  pieces,
		model:   model,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (s *Simulated) Recv() (Chunk, error) {
	if s.next >= len(s.pieces) {
		return Chunk{}, io.EOF
	}
	if err := s.limiter.Wait(s.ctx); err != nil {
		return Chunk{}, &StreamError{Partial: strings.Join(s.pieces[:s.next], ""), Err: err}
	}

	chunk := Chunk{Text: s.pieces[s.next], Model: s.model}
	s.next++
	chunk.Done = s.next == len(s.pieces)
	return chunk, nil
}

func (s *Simulated) Close() error {
	s.cancel()
	s.next = len(s.pieces)
	return nil
}
