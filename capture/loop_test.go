package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverhub/rovercam/frame"
)

func jpegPayload(n int, fill byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = fill
	}
	buf[0], buf[1] = 0xFF, 0xD8
	buf[n-2], buf[n-1] = 0xFF, 0xD9
	return buf
}

// scriptSource serves a fixed sequence of acquisition outcomes and
// tracks buffer releases.
type scriptSource struct {
	mu       sync.Mutex
	script   []func() (*Buffer, error)
	calls    int
	released int
}

func (s *scriptSource) Acquire(ctx context.Context) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.script) {
		return nil, ErrNoFrame
	}
	step := s.script[s.calls]
	s.calls++
	return step()
}

func (s *scriptSource) tracked(data []byte, format Format) *Buffer {
	return NewBuffer(data, format, func() {
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
	})
}

func (s *scriptSource) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// recordSink collects broadcast frames.
type recordSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *recordSink) Broadcast(jpg []byte) {
	buf := make([]byte, len(jpg))
	copy(buf, jpg)
	r.mu.Lock()
	r.frames = append(r.frames, buf)
	r.mu.Unlock()
}

func (r *recordSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestCaptureOnceTransientFailure(t *testing.T) {
	src := &scriptSource{}
	cache := frame.NewCache(0)
	sink := &recordSink{}
	l := NewLoop(src, cache, sink, 0, 0)

	assert.False(t, l.captureOnce(context.Background()))
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, uint64(0), cache.Seq())
}

func TestCaptureOnceDiscardsWrongEncoding(t *testing.T) {
	src := &scriptSource{}
	src.script = []func() (*Buffer, error){
		func() (*Buffer, error) { return src.tracked([]byte("not a jpeg"), FormatJPEG), nil },
		func() (*Buffer, error) { return src.tracked(jpegPayload(64, 0x01), FormatUnknown), nil },
	}
	cache := frame.NewCache(0)
	sink := &recordSink{}
	l := NewLoop(src, cache, sink, 0, 0)

	assert.False(t, l.captureOnce(context.Background()), "bad markers")
	assert.False(t, l.captureOnce(context.Background()), "bad declared format")

	assert.Equal(t, 0, sink.count(), "discarded frames are never broadcast")
	assert.Equal(t, uint64(0), cache.Seq(), "discarded frames are never published")
	assert.Equal(t, 2, src.releaseCount(), "discarded sensor buffers go back to the driver")
}

func TestCaptureOncePublishesAndBroadcasts(t *testing.T) {
	jpg := jpegPayload(128, 0x02)
	src := &scriptSource{}
	src.script = []func() (*Buffer, error){
		func() (*Buffer, error) { return src.tracked(jpg, FormatJPEG), nil },
	}
	cache := frame.NewCache(0)
	sink := &recordSink{}
	l := NewLoop(src, cache, sink, 0, 0)

	assert.True(t, l.captureOnce(context.Background()))

	cached, err := cache.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, jpg, cached)

	require.Equal(t, 1, sink.count())
	assert.Equal(t, jpg, sink.frames[0])
	assert.Equal(t, 1, src.releaseCount(), "the sensor buffer is released after the broadcast")
	assert.Equal(t, StateIdle, l.State())
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &scriptSource{} // every acquire is a transient failure
	cache := frame.NewCache(0)
	l := NewLoop(src, cache, &recordSink{}, time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("capture loop did not stop on context cancellation")
	}
}

func TestRunKeepsCapturing(t *testing.T) {
	src := &scriptSource{}
	for i := 0; i < 5; i++ {
		src.script = append(src.script, func() (*Buffer, error) {
			return src.tracked(jpegPayload(32, 0x03), FormatJPEG), nil
		})
	}
	cache := frame.NewCache(0)
	sink := &recordSink{}
	l := NewLoop(src, cache, sink, time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	require.Eventually(t, func() bool { return sink.count() >= 5 }, time.Second, time.Millisecond,
		"transient failures after the script must not end the loop early")
	assert.GreaterOrEqual(t, cache.Seq(), uint64(5))
}
