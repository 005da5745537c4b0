package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

func newBody(r io.Reader) *trackingBody {
	return &trackingBody{Reader: r}
}

func TestReader_DeliversChunksInOrder(t *testing.T) {
	body := newBody(strings.NewReader(
		"data: {\"text\":\"Hel\"}\n\n" +
			"data: {\"text\":\"lo \"}\n\n" +
			"data: {\"text\":\"world\",\"model\":\"gemini-pro\"}\n\n" +
			"data: {\"text\":\"\",\"done\":true}\n\n",
	))

	var got []string
	res, err := Consume(context.Background(), NewReader(body), func(c Chunk) {
		got = append(got, c.Text)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo ", "world", ""}, got)
	assert.Equal(t, "Hello world", res.Text)
	assert.Equal(t, "gemini-pro", res.Model)
	assert.True(t, res.Done)
	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, 1, body.closed)
}

func TestReader_SkipsMalformedChunks(t *testing.T) {
	body := newBody(strings.NewReader(
		"data: {\"text\":\"a\"}\n\n" +
			"data: {not json}\n\n" +
			": keep-alive comment\n\n" +
			"data: {\"text\":\"b\"}\n\n",
	))

	var got []string
	res, err := Consume(context.Background(), NewReader(body), func(c Chunk) {
		got = append(got, c.Text)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, "ab", res.Text)
	assert.False(t, res.Done)
}

func TestReader_BuffersPartialReads(t *testing.T) {
	raw := "data: {\"text\":\"one \"}\n\ndata: {\"text\":\"two\"}\n\ndata: {\"text\":\"dangling\"}"
	body := newBody(iotest.OneByteReader(strings.NewReader(raw)))

	var got []string
	res, err := Consume(context.Background(), NewReader(body), func(c Chunk) {
		got = append(got, c.Text)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one ", "two"}, got, "trailing data without delimiter is never parsed")
	assert.Equal(t, "one two", res.Text)
}

func TestReader_StopsAtDone(t *testing.T) {
	body := newBody(strings.NewReader(
		"data: {\"text\":\"x\",\"done\":true}\n\ndata: {\"text\":\"ignored\"}\n\n",
	))
	r := NewReader(body)

	chunk, err := r.Recv()
	require.NoError(t, err)
	assert.True(t, chunk.Done)

	_, err = r.Recv()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, body.closed)
}

func TestReader_ErrorChunkKeepsPartial(t *testing.T) {
	body := newBody(strings.NewReader(
		"data: {\"text\":\"partial\"}\n\ndata: {\"error\":\"quota exceeded\"}\n\n",
	))

	res, err := Consume(context.Background(), NewReader(body), nil)
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "partial", streamErr.Partial)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, "partial", res.Text)
	assert.Equal(t, 1, body.closed)
}

func TestReader_TransportErrorClosesBody(t *testing.T) {
	body := newBody(io.MultiReader(
		strings.NewReader("data: {\"text\":\"a\"}\n\n"),
		iotest.ErrReader(errors.New("connection reset")),
	))

	_, err := Consume(context.Background(), NewReader(body), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, body.closed)
}

func TestConsume_CancelledContext(t *testing.T) {
	body := newBody(strings.NewReader("data: {\"text\":\"a\"}\n\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Consume(ctx, NewReader(body), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, body.closed)
}

func TestSimulate_SplitsOnSpaces(t *testing.T) {
	text := "the quick  brown fox"
	var got []string
	res, err := Consume(context.Background(), Simulate(context.Background(), text, "m", 0), func(c Chunk) {
		got = append(got, c.Text)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"the ", "quick ", " ", "brown ", "fox"}, got)
	assert.Equal(t, text, res.Text)
	assert.True(t, res.Done)
	assert.Equal(t, "m", res.Model)
}

func TestSimulate_PacesPieces(t *testing.T) {
	delay := 20 * time.Millisecond
	start := time.Now()
	res, err := Consume(context.Background(), Simulate(context.Background(), "a b c d", "", delay), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Chunks)
	assert.GreaterOrEqual(t, time.Since(start), 3*delay-5*time.Millisecond)
}

func TestSimulate_EmptyText(t *testing.T) {
	s := Simulate(context.Background(), "", "", time.Second)
	_, err := s.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSimulate_CancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := Simulate(ctx, "a b c", "", time.Hour)

	chunk, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "a ", chunk.Text)

	cancel()
	_, err = s.Recv()
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "a ", streamErr.Partial)
}
