// Package stream downloads remote audio into an accumulating buffer that a
// decoder can read while the download is still in progress.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

var (
	// ErrStale is returned when a writer or reader belongs to a buffer
	// generation that has been superseded by Reset.
	ErrStale = errors.New("stream: stale buffer generation")
	// ErrReaderClosed is returned by a Reader after Close.
	ErrReaderClosed = errors.New("stream: reader closed")
	// ErrFinished is returned when writing to a generation that already ended.
	ErrFinished = errors.New("stream: generation already finished")
)

// Buffer accumulates the bytes of one stream at a time.
//
// Each stream is a generation. Reset starts a new generation and drops the
// previous bytes; writers and readers tagged with an older generation fail
// with ErrStale instead of touching the new data.
type Buffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	gen  uint64
	data []byte
	size int64 // expected total, -1 if unknown
	done bool
	err  error
}

// NewBuffer creates an empty buffer at generation 0.
func NewBuffer() *Buffer {
	b := &Buffer{size: -1}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Reset discards all data and returns the new generation.
func (b *Buffer) Reset() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen++
	b.data = nil
	b.size = -1
	b.done = false
	b.err = nil
	b.cond.Broadcast()
	return b.gen
}

// Generation returns the current generation.
func (b *Buffer) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// Write appends p to the given generation.
func (b *Buffer) Write(gen uint64, p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return ErrStale
	}
	if b.done {
		return ErrFinished
	}
	b.data = append(b.data, p...)
	b.cond.Broadcast()
	return nil
}

// SetSize records the expected total length of the generation.
func (b *Buffer) SetSize(gen uint64, size int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return ErrStale
	}
	b.size = size
	return nil
}

// Finish marks the generation as complete. A non-nil err is returned to
// readers once they have consumed the buffered bytes.
func (b *Buffer) Finish(gen uint64, err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return ErrStale
	}
	if b.done {
		return nil
	}
	b.done = true
	b.err = err
	if err == nil {
		b.size = int64(len(b.data))
	}
	b.cond.Broadcast()
	return nil
}

// Len returns the number of buffered bytes in the current generation.
func (b *Buffer) Len() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.data))
}

// Size returns the expected total length, or -1 if unknown.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Done reports whether the writer finished and with which error.
func (b *Buffer) Done() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done, b.err
}

// WaitFor blocks until at least n bytes are buffered or the generation
// finished. It returns ErrStale if the generation is reset meanwhile.
func (b *Buffer) WaitFor(ctx context.Context, gen uint64, n int64) error {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		switch {
		case gen != b.gen:
			return ErrStale
		case int64(len(b.data)) >= n:
			return nil
		case b.done:
			return b.err
		case ctx.Err() != nil:
			return ctx.Err()
		}
		b.cond.Wait()
	}
}

// NewReader returns a reader over the given generation, positioned at 0.
func (b *Buffer) NewReader(gen uint64) *Reader {
	return &Reader{b: b, gen: gen}
}

// Reader reads one buffer generation. Reads block until data arrives, the
// writer finishes, the reader is closed or the generation is reset.
type Reader struct {
	b      *Buffer
	gen    uint64
	pos    int64
	closed bool
}

var _ io.ReadSeekCloser = (*Reader)(nil)

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if err := r.checkLocked(); err != nil {
			return 0, err
		}
		if r.pos < int64(len(b.data)) {
			n := copy(p, b.data[r.pos:])
			r.pos += int64(n)
			return n, nil
		}
		if b.done {
			if b.err != nil {
				return 0, b.err
			}
			return 0, io.EOF
		}
		b.cond.Wait()
	}
}

// Seek implements io.Seeker. Seeking relative to the end waits for the
// total size to become known.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := r.checkLocked(); err != nil {
		return 0, err
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		for b.size < 0 && !b.done {
			b.cond.Wait()
			if err := r.checkLocked(); err != nil {
				return 0, err
			}
		}
		size := b.size
		if size < 0 {
			size = int64(len(b.data))
		}
		abs = size + offset
	default:
		return 0, errors.New("stream: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("stream: negative position")
	}
	r.pos = abs
	return abs, nil
}

// Close unblocks pending reads and makes further calls fail.
func (r *Reader) Close() error {
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()
	r.closed = true
	b.cond.Broadcast()
	return nil
}

func (r *Reader) checkLocked() error {
	if r.closed {
		return ErrReaderClosed
	}
	if r.gen != r.b.gen {
		return ErrStale
	}
	return nil
}
