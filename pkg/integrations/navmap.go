package integrations

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"safaridl/pkg/sources"
)

// NavMap is the flattened navigation structure: the navMap element plus the
// two aggregates the NCX head needs.
type NavMap struct {
	Root     *etree.Element
	Total    int
	MaxDepth int
}

// BuildNavMap flattens the service's nested TOC tree in pre-order: each node
// takes the next playOrder value (parents before children before siblings)
// while the maximum depth attribute is tracked in the same traversal.
func BuildNavMap(toc []sources.TocNode) *NavMap {
	nm := &NavMap{Root: etree.NewElement("navMap")}
	playOrder := 0
	appendNavPoints(nm.Root, toc, &playOrder, &nm.MaxDepth)
	nm.Total = playOrder
	return nm
}

func appendNavPoints(parent *etree.Element, nodes []sources.TocNode, playOrder, maxDepth *int) {
	for _, n := range nodes {
		*playOrder++
		if n.Depth > *maxDepth {
			*maxDepth = n.Depth
		}

		// The fragment identifier names the node when present; the node's
		// own id is the fallback.
		id := n.Fragment
		if id == "" {
			id = n.ID
		}

		navPoint := parent.CreateElement("navPoint")
		navPoint.CreateAttr("id", id)
		navPoint.CreateAttr("playOrder", strconv.Itoa(*playOrder))

		navLabel := navPoint.CreateElement("navLabel")
		navLabel.CreateElement("text").SetText(n.Label)

		content := navPoint.CreateElement("content")
		content.CreateAttr("src", strings.ReplaceAll(n.Href, ".html", ".xhtml"))

		appendNavPoints(navPoint, n.Children, playOrder, maxDepth)
	}
}
