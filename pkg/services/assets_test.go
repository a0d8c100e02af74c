package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchImages_ConcurrencyCeiling(t *testing.T) {
	var (
		mu       sync.Mutex
		inflight int
		maxSeen  int
	)
	d, bookDir := testDownloader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inflight++
		if inflight > maxSeen {
			maxSeen = inflight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()
		w.Write([]byte("image-bytes"))
	}))

	for i := 0; i < 12; i++ {
		d.images.Add(fmt.Sprintf("/images/img%02d.png", i))
	}
	require.NoError(t, d.FetchImages(context.Background()))

	assert.LessOrEqual(t, maxSeen, 5)
	entries, err := os.ReadDir(filepath.Join(bookDir, "OEBPS", "Images"))
	require.NoError(t, err)
	assert.Len(t, entries, 12)
}

func TestFetchImages_SkipsExisting(t *testing.T) {
	var requests atomic.Int64
	d, bookDir := testDownloader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte("image-bytes"))
	}))

	imagesDir := filepath.Join(bookDir, "OEBPS", "Images")
	require.NoError(t, os.MkdirAll(imagesDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(imagesDir, "a.png"), []byte("old"), 0644))

	d.images.Add("/images/a.png")
	d.images.Add("/images/b.png")
	require.NoError(t, d.FetchImages(context.Background()))

	assert.EqualValues(t, 1, requests.Load())
	raw, err := os.ReadFile(filepath.Join(imagesDir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(raw))
}

func TestFetchImages_FailureIsNonFatal(t *testing.T) {
	d, bookDir := testDownloader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/images/broken.png" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("image-bytes"))
	}))

	d.images.Add("/images/good.png")
	d.images.Add("/images/broken.png")
	err := d.FetchImages(context.Background())

	var fetchErr *AssetFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.URL, "/images/broken.png")

	raw, readErr := os.ReadFile(filepath.Join(bookDir, "OEBPS", "Images", "good.png"))
	require.NoError(t, readErr)
	assert.Equal(t, "image-bytes", string(raw))
}

func TestFetchStylesheets_PositionalNames(t *testing.T) {
	d, bookDir := testDownloader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body{}"))
	}))

	d.css.Add(d.cfg.AssetBaseURL + "/files/epub.css")
	d.css.Add(d.cfg.AssetBaseURL + "/files/extra.css")
	require.NoError(t, d.FetchStylesheets(context.Background()))

	for _, name := range []string{"Style01.css", "Style02.css"} {
		_, err := os.Stat(filepath.Join(bookDir, "OEBPS", "Styles", name))
		assert.NoError(t, err, name)
	}
}
