package hlscapture

import (
	"context"
	"image"
	"image/color"
	"sync"
)

type fakeRequest struct {
	source    string
	timestamp float64
	width     int
	height    int
}

// fakeRecorder hands out extractors that record what they were asked to do.
type fakeRecorder struct {
	mu       sync.Mutex
	requests []fakeRequest
	created  int
	disposed int
	finished int // captures that have returned

	// optional failure per request
	fail func(source string, timestamp float64) error
	// when set, capture blocks until context is done or extractor is disposed
	block bool
	// when set, capture ignores context and waits for dispose only
	ignoreContext bool
}

func (r *fakeRecorder) factory() MediaFrameExtractor {
	r.mu.Lock()
	r.created++
	r.mu.Unlock()

	return &fakeExtractor{rec: r, done: make(chan struct{})}
}

func (r *fakeRecorder) finishedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

func (r *fakeRecorder) snapshot() ([]fakeRequest, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	requests := append([]fakeRequest(nil), r.requests...)
	return requests, r.created, r.disposed
}

type fakeExtractor struct {
	rec  *fakeRecorder
	once sync.Once
	done chan struct{}

	source    string
	timestamp float64
}

func (e *fakeExtractor) Load(ctx context.Context, sourceURL string) error {
	e.source = sourceURL
	return nil
}

func (e *fakeExtractor) SeekTo(ctx context.Context, seconds float64) error {
	e.timestamp = seconds
	return nil
}

func (e *fakeExtractor) CaptureRasterFrame(ctx context.Context, width, height int) (image.Image, error) {
	e.rec.mu.Lock()
	e.rec.requests = append(e.rec.requests, fakeRequest{e.source, e.timestamp, width, height})
	block, fail, ignoreContext := e.rec.block, e.rec.fail, e.rec.ignoreContext
	e.rec.mu.Unlock()

	defer func() {
		e.rec.mu.Lock()
		e.rec.finished++
		e.rec.mu.Unlock()
	}()

	if ignoreContext {
		<-e.done
		return nil, context.Canceled
	}

	if block {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.done:
			return nil, context.Canceled
		}
	}

	if fail != nil {
		if err := fail(e.source, e.timestamp); err != nil {
			return nil, err
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	return img, nil
}

func (e *fakeExtractor) Dispose() error {
	e.once.Do(func() {
		close(e.done)

		e.rec.mu.Lock()
		e.rec.disposed++
		e.rec.mu.Unlock()
	})
	return nil
}
