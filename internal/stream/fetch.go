package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/llehouerou/soundplayer/internal/ctr"
)

// MaxEncryptedChunk caps a single read when decrypting.
const MaxEncryptedChunk = 64 * 1024

// ErrReadTimeout is returned when the body stops delivering data.
var ErrReadTimeout = errors.New("stream: read timeout")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "unexpected status: " + e.Status
}

// Options configures a Fetcher.
type Options struct {
	UserAgent          string
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration // idle time allowed between body reads
	ChunkSize          int
	EncryptedChunkSize int
}

// Request describes one download.
type Request struct {
	URL    string
	Cipher *ctr.Cipher // nil for plaintext streams
}

// Chunk describes one block of bytes appended to the buffer.
type Chunk struct {
	Size      int
	Offset    int64 // position of the first byte in the stream
	Total     int64 // bytes processed so far, including this chunk
	Encrypted bool
}

// Fetcher downloads HTTP resources into a Buffer.
type Fetcher struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

// NewFetcher creates a fetcher. Zero options take the defaults used by
// the config package.
func NewFetcher(opts Options, logger *slog.Logger) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "RNSoundPlayer"
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 32 * 1024
	}
	if opts.EncryptedChunkSize <= 0 || opts.EncryptedChunkSize > MaxEncryptedChunk {
		opts.EncryptedChunkSize = MaxEncryptedChunk
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
	}

	return &Fetcher{
		client: &http.Client{Transport: transport},
		opts:   opts,
		logger: logger,
	}
}

// Fetch downloads req into generation gen of buf, decrypting each chunk at
// its stream offset before it is appended. onChunk runs on the calling
// goroutine after every append.
//
// Fetch always finishes the generation: with nil at end of body, or with
// the error that stopped it. It returns the number of bytes processed.
func (f *Fetcher) Fetch(ctx context.Context, req Request, buf *Buffer, gen uint64, onChunk func(Chunk)) (int64, error) {
	total, err := f.fetch(ctx, req, buf, gen, onChunk)
	if errors.Is(err, ErrStale) {
		return total, err
	}
	if ferr := buf.Finish(gen, err); ferr != nil && err == nil {
		err = ferr
	}
	return total, err
}

func (f *Fetcher) fetch(ctx context.Context, req Request, buf *Buffer, gen uint64, onChunk func(Chunk)) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if resp.ContentLength >= 0 {
		if err := buf.SetSize(gen, resp.ContentLength); err != nil {
			return 0, err
		}
	}

	limit := f.opts.ChunkSize
	if req.Cipher != nil {
		limit = min(limit, f.opts.EncryptedChunkSize)
	}

	var idle *time.Timer
	if f.opts.ReadTimeout > 0 {
		idle = time.AfterFunc(f.opts.ReadTimeout, func() { cancel(ErrReadTimeout) })
		defer idle.Stop()
	}

	f.logger.Debug("stream opened",
		"url", req.URL,
		"content_length", resp.ContentLength,
		"encrypted", req.Cipher != nil,
		"chunk_limit", limit)

	chunk := make([]byte, limit)
	var total int64
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			if idle != nil {
				idle.Reset(f.opts.ReadTimeout)
			}
			data := chunk[:n]
			if req.Cipher != nil {
				req.Cipher.XORAt(data, data, total)
			}
			if err := buf.Write(gen, data); err != nil {
				return total, err
			}
			offset := total
			total += int64(n)
			if onChunk != nil {
				onChunk(Chunk{Size: n, Offset: offset, Total: total, Encrypted: req.Cipher != nil})
			}
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			if cause := context.Cause(ctx); errors.Is(cause, ErrReadTimeout) {
				rerr = ErrReadTimeout
			}
			return total, fmt.Errorf("read body: %w", rerr)
		}
	}
}
