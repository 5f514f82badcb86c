// Package pageinfo extracts descriptive metadata from a fetched page:
// title, byline, site name, a short excerpt and the language of the main
// text.
package pageinfo

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/pemistahl/lingua-go"

	"github.com/nao1215/webmirror/internal/model"
)

// minLanguageText is the shortest text worth running language detection on.
const minLanguageText = 20

// detectable is the set of languages the detector chooses from.
var detectable = []lingua.Language{
	lingua.English,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Dutch,
	lingua.Russian,
	lingua.Japanese,
	lingua.Chinese,
	lingua.Korean,
}

var detector = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(detectable...).
		Build()
})

// Extract reads the main article of body and returns its metadata.
func Extract(body []byte, pageURL string) (*model.PageInfo, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	article, err := readability.NewParser().Parse(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read article: %w", err)
	}

	info := &model.PageInfo{
		Title:    normalizeText(article.Title),
		Byline:   normalizeText(article.Byline),
		SiteName: normalizeText(article.SiteName),
		Excerpt:  normalizeText(article.Excerpt),
	}

	text := articleText(article.Content)
	if text == "" {
		text = info.Title + " " + info.Excerpt
	}
	info.Language = DetectLanguage(text)

	return info, nil
}

// DetectLanguage returns the lower-case ISO 639-1 code of text, or "" when
// the text is too short or the language cannot be told.
func DetectLanguage(text string) string {
	text = normalizeText(text)
	if len([]rune(text)) < minLanguageText {
		return ""
	}
	lang, ok := detector().DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

// articleText flattens the readable HTML content to plain text.
func articleText(content string) string {
	if content == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return normalizeText(doc.Text())
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
