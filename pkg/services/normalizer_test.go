package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testNormalizer(t *testing.T) (*Normalizer, *DiscoverySet, *DiscoverySet) {
	t.Helper()
	css := NewDiscoverySet()
	images := NewDiscoverySet()
	n, err := NewNormalizer("https://www.safaribooksonline.com/library/view/a-book/42/", css, images, zap.NewNop())
	require.NoError(t, err)
	return n, css, images
}

func chapterDoc(body string) []byte {
	return []byte(fmt.Sprintf(`<html><head>
<link rel="stylesheet" href="/files/public/epub.css"/>
</head><body><div id="sbo-rt-content">%s</div></body></html>`, body))
}

func TestNormalize_ExtractsContentRegion(t *testing.T) {
	n, _, _ := testNormalizer(t)

	cssBlock, content, err := n.Normalize(chapterDoc("<p>Hello</p>"), "ch01.html", "Chapter 1")
	require.NoError(t, err)
	assert.Contains(t, content, `<div id="sbo-rt-content"><p>Hello</p></div>`)
	assert.Contains(t, cssBlock, `<link href="Styles/Style01.css" rel="stylesheet" type="text/css" />`)
}

func TestNormalize_MissingContentIsCorruption(t *testing.T) {
	n, _, _ := testNormalizer(t)

	raw := []byte(`<html><body><div id="something-else">nope</div></body></html>`)
	_, _, err := n.Normalize(raw, "ch01.html", "Chapter 1")

	var missing *ContentMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ch01.html", missing.Filename)
	assert.Equal(t, "Chapter 1", missing.Title)
}

func TestNormalize_GlobalStylesheetNumbering(t *testing.T) {
	n, css, _ := testNormalizer(t)

	// first chapter discovers the shared stylesheet as Style01
	cssBlock, _, err := n.Normalize(chapterDoc("<p>one</p>"), "ch01.html", "One")
	require.NoError(t, err)
	assert.Contains(t, cssBlock, "Styles/Style01.css")

	// second chapter brings a new stylesheet but still references the shared
	// one under its original number
	two := []byte(`<html><head>
<link rel="stylesheet" href="/files/public/epub.css"/>
<link rel="stylesheet" href="//cdn.example.com/extra.css"/>
</head><body><div id="sbo-rt-content"><p>two</p></div></body></html>`)
	cssBlock, _, err = n.Normalize(two, "ch02.html", "Two")
	require.NoError(t, err)
	assert.Contains(t, cssBlock, "Styles/Style01.css")
	assert.Contains(t, cssBlock, "Styles/Style02.css")

	assert.Equal(t, []string{
		"https://www.safaribooksonline.com/files/public/epub.css",
		"https://cdn.example.com/extra.css",
	}, css.Items())

	// normalizing the first chapter again changes nothing
	cssBlock, _, err = n.Normalize(chapterDoc("<p>one</p>"), "ch01.html", "One")
	require.NoError(t, err)
	assert.Contains(t, cssBlock, "Styles/Style01.css")
	assert.Equal(t, 2, css.Len())
}

func TestNormalize_InlineStyleTemplate(t *testing.T) {
	n, _, _ := testNormalizer(t)

	raw := []byte(`<html><head>
<style data-template="p{color:red}">placeholder</style>
</head><body><div id="sbo-rt-content"><p>x</p></div></body></html>`)

	cssBlock, _, err := n.Normalize(raw, "ch01.html", "One")
	require.NoError(t, err)
	assert.Contains(t, cssBlock, "<style>p{color:red}</style>")
	assert.NotContains(t, cssBlock, "data-template")
	assert.NotContains(t, cssBlock, "placeholder")
}

func TestNormalize_RewritesContentReferences(t *testing.T) {
	n, _, images := testNormalizer(t)

	raw := chapterDoc(`<img src="/library/cover.png"/><a href="ch02.html">next</a><a href="https://example.com/x">out</a>`)
	_, content, err := n.Normalize(raw, "ch01.html", "One")
	require.NoError(t, err)

	assert.Contains(t, content, `src="Images/cover.png"`)
	assert.Contains(t, content, `href="ch02.xhtml"`)
	assert.Contains(t, content, `href="https://example.com/x"`)
	assert.Equal(t, []string{"/library/cover.png"}, images.Items())
}
