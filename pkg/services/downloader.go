package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"safaridl/pkg/display"
	"safaridl/pkg/sources"
	"safaridl/pkg/utils"
)

// The persisted page shell. Chapter head css and body markup slot in; the
// kindle block relaxes overflow rules that break e-readers.
const (
	pageHeader = "<!DOCTYPE html>\n" +
		"<html lang=\"en\" xml:lang=\"en\" xmlns=\"http://www.w3.org/1999/xhtml\"" +
		" xmlns:xsi=\"http://www.w3.org/2001/XMLSchema-instance\"" +
		" xsi:schemaLocation=\"http://www.w3.org/2002/06/xhtml2/" +
		" http://www.w3.org/MarkUp/SCHEMA/xhtml2.xsd\"" +
		" xmlns:epub=\"http://www.idpf.org/2007/ops\">\n" +
		"<head>\n" +
		"%s\n" +
		"<style type=\"text/css\">" +
		"body{background-color:#fbfbfb!important;margin:1em;}" +
		"#sbo-rt-content *{text-indent:0pt!important;}"

	kindleCSS = "#sbo-rt-content *{word-wrap:break-word!important;" +
		"word-break:break-word!important;}#sbo-rt-content table,#sbo-rt-content pre" +
		"{overflow-x:unset!important;overflow:unset!important;" +
		"overflow-y:unset!important;white-space:pre-wrap!important;}"

	pageFooter = "</style>" +
		"</head>\n" +
		"<body>%s</body>\n</html>"
)

// Config carries the per-book settings of a download run.
type Config struct {
	// BookDir is the package directory the run lays out.
	BookDir string
	// BaseURL is the book's web URL; chapter filenames and relative
	// stylesheet references resolve against it.
	BaseURL string
	// AssetBaseURL is the service root root-relative image references
	// resolve against. Defaults to the content service.
	AssetBaseURL string
	// NoKindle drops the e-reader overflow css from persisted pages.
	NoKindle bool
}

// Downloader drives a whole book run: sequential chapter materialization,
// then bounded-concurrency asset acquisition.
type Downloader struct {
	api  *utils.API
	disp *display.Display
	log  *zap.Logger
	cfg  Config

	baseURL *url.URL
	css     *DiscoverySet
	images  *DiscoverySet
	norm    *Normalizer

	// set when a chapter skip happened, so the asset phase can warn that
	// discovery may be incomplete
	resumed bool
}

func NewDownloader(api *utils.API, disp *display.Display, log *zap.Logger, cfg Config) (*Downloader, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid book base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.AssetBaseURL == "" {
		cfg.AssetBaseURL = sources.BaseURL
	}

	css := NewDiscoverySet()
	images := NewDiscoverySet()
	norm, err := NewNormalizer(cfg.BaseURL, css, images, log)
	if err != nil {
		return nil, err
	}

	return &Downloader{
		api:     api,
		disp:    disp,
		log:     log,
		cfg:     cfg,
		baseURL: base,
		css:     css,
		images:  images,
		norm:    norm,
	}, nil
}

// CSS returns the stylesheet discovery order accumulated so far.
func (d *Downloader) CSS() []string { return d.css.Items() }

// Images returns the image discovery order accumulated so far.
func (d *Downloader) Images() []string { return d.images.Items() }

func (d *Downloader) oebpsDir() string { return filepath.Join(d.cfg.BookDir, "OEBPS") }

// TargetName is the persisted filename of a chapter record.
func TargetName(filename string) string {
	return strings.ReplaceAll(filename, ".html", ".xhtml")
}

// Materialize fetches, normalizes and persists every chapter that is not
// already on disk. Chapters are processed strictly in list order: stylesheet
// numbering depends on global first-seen order across chapters, so this
// phase must stay sequential.
func (d *Downloader) Materialize(ctx context.Context, chapters []sources.Chapter) error {
	d.disp.ResetProgress()

	seen := make(map[string]bool, len(chapters))
	for i, ch := range chapters {
		target := TargetName(ch.Filename)
		path := filepath.Join(d.oebpsDir(), target)

		if _, err := os.Stat(path); err == nil {
			// Resume: a present file is proof of prior success. Advise once,
			// and only when the skip is not caused by a duplicate record.
			if !seen[ch.Filename] {
				d.resumed = true
				d.disp.AdviseOnce("chapters", fmt.Sprintf(
					"File `%s` already exists. To download the whole book again, "+
						"delete the `%s/OEBPS/*.xhtml` files and restart.", target, d.cfg.BookDir))
			}
		} else {
			if err := d.materializeChapter(ctx, ch, path); err != nil {
				return err
			}
		}

		seen[ch.Filename] = true
		d.disp.Progress(i+1, len(chapters))
	}
	return nil
}

func (d *Downloader) materializeChapter(ctx context.Context, ch sources.Chapter, path string) error {
	ref, err := url.Parse(ch.Filename)
	if err != nil {
		return &sources.RetrievalError{Op: "chapter", Detail: fmt.Sprintf("bad filename %q: %v", ch.Filename, err)}
	}
	pageURL := d.baseURL.ResolveReference(ref).String()

	raw, err := d.api.Get(ctx, pageURL)
	if err != nil {
		return &sources.RetrievalError{
			Op:     "chapter",
			Detail: fmt.Sprintf("error retrieving page %s (%s) from %s: %v", ch.Filename, ch.Title, pageURL, err),
		}
	}

	cssBlock, body, err := d.norm.Normalize(raw, ch.Filename, ch.Title)
	if err != nil {
		return err
	}

	page := fmt.Sprintf(pageHeader, cssBlock)
	if !d.cfg.NoKindle {
		page += kindleCSS
	}
	page += fmt.Sprintf(pageFooter, body)

	if err := os.WriteFile(path, []byte(page), 0644); err != nil {
		return fmt.Errorf("failed to write chapter %s: %w", filepath.Base(path), err)
	}
	d.log.Debug("created chapter", zap.String("file", filepath.Base(path)))
	return nil
}
