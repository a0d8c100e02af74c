package integrations

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safaridl/pkg/sources"
)

func TestBuildNavMap_PreOrderPlayOrder(t *testing.T) {
	toc := []sources.TocNode{
		{
			ID: "ch01", Label: "Chapter 1", Href: "ch01.html", Depth: 1,
			Children: []sources.TocNode{
				{ID: "ch01s01", Label: "Section 1.1", Href: "ch01.html#s1", Depth: 2},
			},
		},
		{ID: "ch02", Label: "Chapter 2", Href: "ch02.html", Depth: 1},
	}

	nav := BuildNavMap(toc)

	assert.Equal(t, 3, nav.Total)
	assert.Equal(t, 2, nav.MaxDepth)

	points := nav.Root.FindElements(".//navPoint")
	require.Len(t, points, 3)

	orders := make([]string, len(points))
	labels := make([]string, len(points))
	for i, p := range points {
		orders[i] = p.SelectAttrValue("playOrder", "")
		labels[i] = p.FindElement("navLabel/text").Text()
	}
	assert.Equal(t, []string{"1", "2", "3"}, orders)
	assert.Equal(t, []string{"Chapter 1", "Section 1.1", "Chapter 2"}, labels)

	// the child point nests under its parent
	child := points[0].FindElement("navPoint")
	require.NotNil(t, child)
	assert.Equal(t, "2", child.SelectAttrValue("playOrder", ""))
}

func TestBuildNavMap_ContentTargets(t *testing.T) {
	toc := []sources.TocNode{
		{ID: "pref", Fragment: "preface", Label: "Preface", Href: "pref.html#preface", Depth: 1},
	}

	nav := BuildNavMap(toc)

	point := nav.Root.FindElement("navPoint")
	require.NotNil(t, point)
	assert.Equal(t, "preface", point.SelectAttrValue("id", ""))
	assert.Equal(t, "pref.xhtml#preface", point.FindElement("content").SelectAttrValue("src", ""))
}

func TestBuildNavMap_Empty(t *testing.T) {
	nav := BuildNavMap(nil)

	assert.Equal(t, 0, nav.Total)
	assert.Equal(t, 0, nav.MaxDepth)
	assert.Empty(t, nav.Root.ChildElements())
}

func TestBuildNavMap_RootSerializes(t *testing.T) {
	nav := BuildNavMap([]sources.TocNode{{ID: "a", Label: "A", Href: "a.html", Depth: 1}})

	doc := etree.NewDocument()
	doc.AddChild(nav.Root)
	out, err := doc.WriteToString()
	require.NoError(t, err)
	assert.Contains(t, out, `<navPoint id="a" playOrder="1">`)
}
