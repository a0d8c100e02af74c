package services

import (
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
)

// RefKind classifies a reference found inside chapter markup.
type RefKind int

const (
	// RefExternal passes through unchanged: absolute URLs and anything
	// already in its final form.
	RefExternal RefKind = iota
	// RefImage is a root-relative image reference, relocated under Images/.
	RefImage
	// RefLocalPage is a relative link to another chapter, renamed to the
	// package page extension.
	RefLocalPage
)

// Rewriter maps raw in-document references to repackaged-local ones and
// feeds the image discovery set as a side effect.
type Rewriter struct {
	images *DiscoverySet
	log    *zap.Logger
}

func NewRewriter(images *DiscoverySet, log *zap.Logger) *Rewriter {
	return &Rewriter{images: images, log: log}
}

// Rewrite applies the three-way classification the package assembler relies
// on: every image placeholder in persisted markup points to Images/<name>,
// every local page placeholder to an .xhtml filename.
func (r *Rewriter) Rewrite(ref string) (string, RefKind) {
	if ref == "" {
		return ref, RefExternal
	}

	if strings.HasPrefix(ref, "/") && isImageRef(ref) {
		if _, isNew := r.images.Add(ref); isNew {
			r.log.Debug("crawler: found a new image", zap.String("url", ref))
		}
		return "Images/" + path.Base(ref), RefImage
	}

	if !strings.HasPrefix(ref, "/") && !hasScheme(ref) {
		return strings.ReplaceAll(ref, ".html", ".xhtml"), RefLocalPage
	}

	return ref, RefExternal
}

func isImageRef(ref string) bool {
	if strings.Contains(ref, "cover") || strings.Contains(ref, "images") || strings.Contains(ref, "graphics") {
		return true
	}
	switch strings.ToLower(path.Ext(ref)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func hasScheme(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && u.Scheme != ""
}
