package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/soundplayer/internal/ctr"
)

const (
	testKey     = "000102030405060708090a0b0c0d0e0f"
	testCounter = "a0a1a2a3a4a5a6a7a8a9aaabacadaeaf"
)

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i * 7)
	}
	return p
}

func serveBytes(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Plaintext(t *testing.T) {
	body := payload(100_000)
	srv := serveBytes(t, body)

	f := NewFetcher(Options{UserAgent: "test-agent", ChunkSize: 4096}, nil)
	buf := NewBuffer()
	gen := buf.Reset()

	var chunks []Chunk
	total, err := f.Fetch(context.Background(), Request{URL: srv.URL}, buf, gen, func(c Chunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), total)

	var sum int64
	for i, c := range chunks {
		assert.LessOrEqual(t, c.Size, 4096)
		assert.Equal(t, sum, c.Offset, "chunk %d offset", i)
		sum += int64(c.Size)
		assert.Equal(t, sum, c.Total)
		assert.False(t, c.Encrypted)
	}
	assert.Equal(t, total, sum)

	got, err := io.ReadAll(buf.NewReader(gen))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(body, got))
}

func TestFetch_DecryptsChunks(t *testing.T) {
	plain := payload(200_003)
	c, err := ctr.FromHex(testKey, testCounter)
	require.NoError(t, err)
	encrypted := make([]byte, len(plain))
	c.XORAt(encrypted, plain, 0)

	srv := serveBytes(t, encrypted)

	// Odd chunk size forces chunks that start inside a cipher block.
	f := NewFetcher(Options{UserAgent: "test-agent", ChunkSize: 1000, EncryptedChunkSize: 999}, nil)
	buf := NewBuffer()
	gen := buf.Reset()

	var encryptedChunks int
	_, err = f.Fetch(context.Background(), Request{URL: srv.URL, Cipher: c}, buf, gen, func(ch Chunk) {
		assert.LessOrEqual(t, ch.Size, 999)
		if ch.Encrypted {
			encryptedChunks++
		}
	})
	require.NoError(t, err)
	assert.Positive(t, encryptedChunks)

	got, err := io.ReadAll(buf.NewReader(gen))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(plain, got), "decrypted stream differs from plaintext")
}

func TestFetch_EncryptedChunkCap(t *testing.T) {
	f := NewFetcher(Options{EncryptedChunkSize: 1 << 20}, nil)
	assert.Equal(t, MaxEncryptedChunk, f.opts.EncryptedChunkSize)
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(Options{}, nil)
	buf := NewBuffer()
	gen := buf.Reset()

	_, err := f.Fetch(context.Background(), Request{URL: srv.URL}, buf, gen, nil)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	done, derr := buf.Done()
	assert.True(t, done)
	assert.ErrorAs(t, derr, &se)
}

func TestFetch_ContentLengthSetsSize(t *testing.T) {
	body := payload(5000)
	srv := serveBytes(t, body)

	f := NewFetcher(Options{UserAgent: "test-agent"}, nil)
	buf := NewBuffer()
	gen := buf.Reset()

	sizeSeen := int64(-2)
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL}, buf, gen, func(Chunk) {
		if sizeSeen == -2 {
			sizeSeen = buf.Size()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), sizeSeen)
}

func TestFetch_StaleGenerationStopsWriting(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		<-release
		_, _ = w.Write([]byte("second"))
	}))
	defer srv.Close()
	defer close(release)

	f := NewFetcher(Options{}, nil)
	buf := NewBuffer()
	gen := buf.Reset()

	firstSeen := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), Request{URL: srv.URL}, buf, gen, func(Chunk) {
			select {
			case <-firstSeen:
			default:
				close(firstSeen)
			}
		})
		errCh <- err
	}()

	<-firstSeen
	next := buf.Reset()
	require.NoError(t, buf.Write(next, []byte("new")))
	release <- struct{}{}

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not stop")
	}

	got := make([]byte, 3)
	_, err := io.ReadFull(buf.NewReader(next), got)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assert.Equal(t, int64(3), buf.Len())
}

func TestFetch_Cancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.(http.Flusher).Flush()
		<-block
	}))
	defer srv.Close()
	defer close(block)

	f := NewFetcher(Options{}, nil)
	buf := NewBuffer()
	gen := buf.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, Request{URL: srv.URL}, buf, gen, nil)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch ignored cancellation")
	}
}

func TestFetch_ReadTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		<-block
	}))
	defer srv.Close()
	defer close(block)

	f := NewFetcher(Options{ReadTimeout: 50 * time.Millisecond}, nil)
	buf := NewBuffer()
	gen := buf.Reset()

	_, err := f.Fetch(context.Background(), Request{URL: srv.URL}, buf, gen, nil)
	assert.ErrorIs(t, err, ErrReadTimeout)
}
