// Package extract finds the resources a page depends on.
//
// References are returned stylesheets first, then scripts, then images, each
// group in document order. The document is never modified.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/webmirror/internal/model"
)

// selector describes one group of references.
type selector struct {
	kind      model.TagKind
	query     string
	attribute string
	accept    func(*goquery.Selection) bool
}

// selectors is the fixed extraction order.
var selectors = []selector{
	{kind: model.TagStylesheet, query: "link[href]", attribute: "href", accept: isStylesheet},
	{kind: model.TagScript, query: "script[src]", attribute: "src"},
	{kind: model.TagImage, query: "img[src]", attribute: "src"},
}

// isStylesheet reports whether rel contains the "stylesheet" token.
func isStylesheet(s *goquery.Selection) bool {
	rel, _ := s.Attr("rel")
	for _, token := range strings.Fields(rel) {
		if strings.EqualFold(token, "stylesheet") {
			return true
		}
	}
	return false
}

// References parses body and returns its resource references.
// Elements whose URL attribute is blank are skipped; duplicates are kept.
func References(body []byte) ([]model.ResourceReference, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return FromDocument(doc), nil
}

// FromDocument extracts references from an already parsed document.
func FromDocument(doc *goquery.Document) []model.ResourceReference {
	refs := make([]model.ResourceReference, 0)
	for _, sel := range selectors {
		doc.Find(sel.query).Each(func(_ int, s *goquery.Selection) {
			if sel.accept != nil && !sel.accept(s) {
				return
			}
			value, ok := s.Attr(sel.attribute)
			if !ok || strings.TrimSpace(value) == "" {
				return
			}
			refs = append(refs, model.ResourceReference{
				Kind:      sel.kind,
				Attribute: sel.attribute,
				RawURL:    value,
				Index:     len(refs),
			})
		})
	}
	return refs
}
