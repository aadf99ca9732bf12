package utils

import (
	"context"
	"io"
	"sync"
	"time"
)

// StreamCache buffers a single upstream body and replays it to any number
// of readers, also to those who join while it is still being written.
type StreamCache struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks [][]byte
	size   int
	closed bool
	err    error

	expires time.Time
}

func NewStreamCache(expires time.Time) *StreamCache {
	c := &StreamCache{expires: expires}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *StreamCache) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, io.ErrClosedPipe
	}

	chunk := make([]byte, len(p))
	copy(chunk, p)
	c.chunks = append(c.chunks, chunk)
	c.size += len(p)

	c.cond.Broadcast()
	return len(p), nil
}

func (c *StreamCache) Close() error {
	return c.CloseWithError(nil)
}

// CloseWithError marks stream as finished, non nil error marks it as broken
// and it is reported to readers and treated as expired.
func (c *StreamCache) CloseWithError(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.err = err
	c.cond.Broadcast()
	return nil
}

// CopyTo writes whole stream to w, blocks until stream is closed or ctx is done.
func (c *StreamCache) CopyTo(ctx context.Context, w io.Writer) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	for index := 0; ; index++ {
		c.mu.Lock()
		for index >= len(c.chunks) && !c.closed && ctx.Err() == nil {
			c.cond.Wait()
		}

		if ctx.Err() != nil {
			c.mu.Unlock()
			return ctx.Err()
		}

		if index >= len(c.chunks) {
			err := c.err
			c.mu.Unlock()
			return err
		}

		chunk := c.chunks[index]
		c.mu.Unlock()

		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
}

func (c *StreamCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *StreamCache) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err != nil || time.Now().After(c.expires)
}
