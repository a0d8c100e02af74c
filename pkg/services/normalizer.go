package services

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const contentID = "sbo-rt-content"

// Normalizer turns a raw fetched chapter document into the css head block
// and the serialized main-content markup persisted into the package.
type Normalizer struct {
	baseURL  *url.URL
	css      *DiscoverySet
	rewriter *Rewriter
	log      *zap.Logger
}

func NewNormalizer(baseURL string, css, images *DiscoverySet, log *zap.Logger) (*Normalizer, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid book base url %q: %w", baseURL, err)
	}
	return &Normalizer{
		baseURL:  base,
		css:      css,
		rewriter: NewRewriter(images, log),
		log:      log,
	}, nil
}

// Normalize extracts the main content region, collects stylesheet references
// into the global discovery set, rewrites in-content links and serializes the
// content node as well-formed markup.
func (n *Normalizer) Normalize(raw []byte, filename, title string) (cssBlock, content string, err error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", "", &ParseError{Filename: filename, Err: err}
	}

	contentNode := findByID(doc, contentID)
	if contentNode == nil {
		return "", "", &ContentMissingError{Filename: filename, Title: title}
	}

	var css strings.Builder

	// Linked stylesheets are numbered by their position in the global
	// discovery order, assigned at first discovery. Later chapters that
	// share a stylesheet emit the same index, which keeps re-normalization
	// idempotent.
	for _, link := range findAll(doc, isStylesheetLink) {
		href, ok := getAttr(link, "href")
		if !ok || href == "" {
			continue
		}
		cssURL := n.resolveStylesheet(href)
		pos, isNew := n.css.Add(cssURL)
		if isNew {
			n.log.Debug("crawler: found a new css", zap.String("url", cssURL))
		}
		fmt.Fprintf(&css, "<link href=\"Styles/%s\" rel=\"stylesheet\" type=\"text/css\" />\n", StylesheetName(pos))
	}

	// Inline styles follow the linked block. A data-template attribute
	// carries the real payload on some pages; it becomes the element text.
	for _, style := range findAll(doc, isElement("style")) {
		if tpl, ok := getAttr(style, "data-template"); ok {
			if tpl != "" {
				setText(style, tpl)
			}
			removeAttr(style, "data-template")
		}
		var buf bytes.Buffer
		if err := html.Render(&buf, style); err != nil {
			return "", "", &ParseError{Filename: filename, Err: err}
		}
		css.WriteString(buf.String())
		css.WriteString("\n")
	}

	n.rewriteRefs(contentNode)

	var buf bytes.Buffer
	if err := html.Render(&buf, contentNode); err != nil {
		return "", "", &ParseError{Filename: filename, Err: err}
	}
	return css.String(), buf.String(), nil
}

// resolveStylesheet makes a stylesheet reference absolute: protocol-relative
// ones resolve against https:, everything else against the book's base URL.
func (n *Normalizer) resolveStylesheet(href string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return n.baseURL.ResolveReference(ref).String()
}

func (n *Normalizer) rewriteRefs(node *html.Node) {
	walk(node, func(c *html.Node) {
		if c.Type != html.ElementNode {
			return
		}
		for i, a := range c.Attr {
			if a.Key == "href" || a.Key == "src" {
				c.Attr[i].Val, _ = n.rewriter.Rewrite(a.Val)
			}
		}
	})
}

// StylesheetName is the deterministic local name of the stylesheet at the
// given zero-based discovery position.
func StylesheetName(pos int) string {
	return fmt.Sprintf("Style%02d.css", pos+1)
}

// Node helpers.

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findByID(n *html.Node, id string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found != nil || c.Type != html.ElementNode {
			return
		}
		if v, ok := getAttr(c, "id"); ok && v == id {
			found = c
		}
	})
	return found
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(n, func(c *html.Node) {
		if match(c) {
			out = append(out, c)
		}
	})
	return out
}

func isElement(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

func isStylesheetLink(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "link" {
		return false
	}
	rel, _ := getAttr(n, "rel")
	return rel == "stylesheet"
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func removeAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

func setText(n *html.Node, text string) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
