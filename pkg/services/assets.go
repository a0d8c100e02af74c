package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// batchSize is the asset download concurrency ceiling: at most this many
// fetches in flight, and a batch fully joins before the next one starts.
const batchSize = 5

type assetItem struct {
	url  string
	path string
}

// FetchStylesheets downloads every discovered stylesheet under its
// positional local name.
func (d *Downloader) FetchStylesheets(ctx context.Context) error {
	dir := filepath.Join(d.oebpsDir(), "Styles")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create styles directory: %w", err)
	}

	items := make([]assetItem, 0, d.css.Len())
	for i, u := range d.css.Items() {
		items = append(items, assetItem{url: u, path: filepath.Join(dir, StylesheetName(i))})
	}
	return d.fetchAll(ctx, items, "css")
}

// FetchImages downloads every discovered image under its basename. Image
// references are root-relative and resolve against the service root.
func (d *Downloader) FetchImages(ctx context.Context) error {
	dir := filepath.Join(d.oebpsDir(), "Images")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}

	if d.resumed {
		d.disp.AdviseOnce("resume", "Some of the book contents were already downloaded. "+
			"To be sure all images are fetched, delete the `OEBPS/*.xhtml` files and restart.")
	}

	items := make([]assetItem, 0, d.images.Len())
	for _, u := range d.images.Items() {
		items = append(items, assetItem{
			url:  d.resolveAsset(u),
			path: filepath.Join(dir, path.Base(u)),
		})
	}
	return d.fetchAll(ctx, items, "images")
}

func (d *Downloader) resolveAsset(link string) string {
	base, err := url.Parse(d.cfg.AssetBaseURL)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

// fetchAll processes items in fixed-size concurrent batches. A per-item
// failure is reported and recorded but never aborts the run: the package is
// assembled from whatever materialized.
func (d *Downloader) fetchAll(ctx context.Context, items []assetItem, kind string) error {
	d.disp.ResetProgress()

	var (
		done atomic.Int64
		mu   sync.Mutex
		errs error
	)

	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))

		var wg sync.WaitGroup
		for _, item := range items[start:end] {
			wg.Add(1)
			go func(item assetItem) {
				defer wg.Done()
				if err := d.fetchAsset(ctx, item, kind); err != nil {
					ferr := &AssetFetchError{URL: item.url, Err: err}
					d.disp.Error(ferr.Error())
					mu.Lock()
					errs = multierr.Append(errs, ferr)
					mu.Unlock()
				}
				d.disp.Progress(int(done.Add(1)), len(items))
			}(item)
		}
		wg.Wait()
	}
	return errs
}

func (d *Downloader) fetchAsset(ctx context.Context, item assetItem, kind string) error {
	if _, err := os.Stat(item.path); err == nil {
		d.disp.AdviseOnce(kind, fmt.Sprintf(
			"File `%s` already exists. To download all the %s again, delete the "+
				"`OEBPS/*.xhtml` and `OEBPS/%s` files and restart.",
			filepath.Base(item.path), kind, filepath.Base(filepath.Dir(item.path))+"/*"))
		return nil
	}

	f, err := os.Create(item.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := d.api.Stream(ctx, item.url, f); err != nil {
		// The zero-byte file stays behind; package integrity checking is out
		// of scope and the manifest is reconciled against disk truth later.
		d.log.Warn("asset fetch failed",
			zap.String("url", item.url), zap.String("file", filepath.Base(item.path)), zap.Error(err))
		return err
	}
	return nil
}
