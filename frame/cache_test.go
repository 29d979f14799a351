package frame

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePublishSnapshot(t *testing.T) {
	c := NewCache(0)

	want := validJPEG(128, 0x11)
	require.NoError(t, c.Publish(want))

	got, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCacheSnapshotIsACopy(t *testing.T) {
	c := NewCache(0)
	require.NoError(t, c.Publish(validJPEG(32, 0x22)))

	first, err := c.Snapshot()
	require.NoError(t, err)
	for i := range first {
		first[i] = 0xFF
	}

	second, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, validJPEG(32, 0x22), second, "mutating a snapshot must not touch the cached frame")
}

func TestCachePublishReplacesPrevious(t *testing.T) {
	c := NewCache(0)
	require.NoError(t, c.Publish(validJPEG(32, 0x01)))
	require.NoError(t, c.Publish(validJPEG(48, 0x02)))

	got, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, validJPEG(48, 0x02), got)
}

func TestCacheEmpty(t *testing.T) {
	c := NewCache(0)

	_, err := c.Snapshot()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCachePublishRejectsEmptyPayload(t *testing.T) {
	c := NewCache(0)
	assert.ErrorIs(t, c.Publish(nil), ErrEmpty)
	assert.Equal(t, uint64(0), c.Seq())
}

func TestCacheBusy(t *testing.T) {
	c := NewCache(time.Millisecond)
	require.NoError(t, c.Publish(validJPEG(16, 0x33)))

	// Hold the slot lock so both operations run out their bounded wait.
	c.sem <- struct{}{}

	err := c.Publish(validJPEG(16, 0x44))
	assert.ErrorIs(t, err, ErrBusy)

	_, err = c.Snapshot()
	assert.ErrorIs(t, err, ErrBusy)

	<-c.sem

	// The skipped publish left the previous frame authoritative.
	got, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, validJPEG(16, 0x33), got)
}

func TestCacheSeq(t *testing.T) {
	c := NewCache(time.Millisecond)
	assert.Equal(t, uint64(0), c.Seq())

	require.NoError(t, c.Publish(validJPEG(16, 0x01)))
	assert.Equal(t, uint64(1), c.Seq())

	c.sem <- struct{}{}
	_ = c.Publish(validJPEG(16, 0x02))
	<-c.sem
	assert.Equal(t, uint64(1), c.Seq(), "a skipped publish must not advance the sequence")
}

// TestCacheAtomicity hammers the cache from publishers and readers;
// every snapshot must be a frame that was published whole, never a mix
// of two.
func TestCacheAtomicity(t *testing.T) {
	c := NewCache(50 * time.Millisecond)
	const size = 4 * 1024

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := byte(1); w <= 3; w++ {
		wg.Add(1)
		go func(fill byte) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = c.Publish(validJPEG(size, fill))
				}
			}
		}(w)
	}

	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				got, err := c.Snapshot()
				if err != nil {
					continue
				}
				if len(got) != size {
					t.Errorf("torn frame: got %d bytes, want %d", len(got), size)
					return
				}
				fill := got[2]
				for j := 2; j < size-2; j++ {
					if got[j] != fill {
						t.Errorf("torn frame: byte %d is %#x, frame fill is %#x", j, got[j], fill)
						return
					}
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}
