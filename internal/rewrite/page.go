package rewrite

import (
	"bytes"
	"fmt"
	"net/url"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// urlAttributes lists the attribute rewritten for each extracted element.
var urlAttributes = map[atom.Atom]string{
	atom.Link:   "href",
	atom.Script: "src",
	atom.Img:    "src",
}

// edit is one pending change to the parsed page.
type edit struct {
	node  *html.Node
	attr  int // index into node.Attr, -1 for the node's text
	value string
}

// PageResult is a rewritten page.
type PageResult struct {
	// HTML is the rendered document.
	HTML []byte
	// References is the number of href/src values that were rewritten.
	References int
	// InlineStyles is the number of <style> blocks and style attributes changed.
	InlineStyles int
}

// Page rewrites body so that every link/script/img URL found in renames
// points at its local path. pageURL is the address the body was served
// from; relative references are resolved against it. Unknown URLs,
// including cross-origin ones, are left untouched. The page is assumed to
// live at the mirror root.
func Page(body []byte, pageURL string, renames map[string]string) (*PageResult, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	edits := collectEdits(doc, base, renames)

	result := &PageResult{}
	for _, e := range edits {
		if e.attr < 0 {
			e.node.Data = e.value
			result.InlineStyles++
			continue
		}
		e.node.Attr[e.attr].Val = e.value
		if e.node.Attr[e.attr].Key == "style" {
			result.InlineStyles++
		} else {
			result.References++
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	result.HTML = buf.Bytes()
	return result, nil
}

// collectEdits walks the tree without modifying it.
func collectEdits(doc *html.Node, base *url.URL, renames map[string]string) []edit {
	if len(renames) == 0 {
		return nil
	}
	inline := newTokenRewriter(base, renames, ".")

	var edits []edit
	for n := range doc.Descendants() {
		switch n.Type {
		case html.ElementNode:
			want := urlAttributes[n.DataAtom]
			for i, a := range n.Attr {
				if a.Namespace != "" {
					continue
				}
				switch {
				case want != "" && a.Key == want:
					if target, ok := attributeTarget(a.Val, inline, renames); ok && target != a.Val {
						edits = append(edits, edit{node: n, attr: i, value: target})
					}
				case a.Key == "style":
					if v := inline.css(a.Val); v != a.Val {
						edits = append(edits, edit{node: n, attr: i, value: v})
					}
				}
			}
		case html.TextNode:
			if n.Parent == nil || n.Parent.DataAtom != atom.Style {
				continue
			}
			if v := inline.css(n.Data); v != n.Data {
				edits = append(edits, edit{node: n, attr: -1, value: v})
			}
		}
	}
	return edits
}

// attributeTarget looks the value up as written first, then by its
// resolved absolute URL.
func attributeTarget(val string, resolver *tokenRewriter, renames map[string]string) (string, bool) {
	if target, ok := renames[val]; ok {
		return target, true
	}
	return resolver.lookup(val)
}
