package rewrite

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// cssURLPattern matches url(...) with double, single or no quotes.
	cssURLPattern = regexp.MustCompile(`url\(\s*(?:"([^"]*)"|'([^']*)'|([^"'()\s]+))\s*\)`)
	// cssImportPattern matches the string form of @import; the url() form
	// is covered by cssURLPattern.
	cssImportPattern = regexp.MustCompile(`@import\s+(?:"([^"]*)"|'([^']*)')`)
	// jsStringPattern matches single-line string literals without escapes
	// or whitespace.
	jsStringPattern = regexp.MustCompile(`"([^"\s\\]*)"|'([^'\s\\]*)'`)
)

// tokenRewriter replaces URL tokens whose resolved absolute URL has been
// mirrored. Raw (unresolved) keys of the rename map are never consulted.
type tokenRewriter struct {
	base    *url.URL
	renames map[string]string
	fromDir string
}

func newTokenRewriter(base *url.URL, renames map[string]string, fromDir string) *tokenRewriter {
	return &tokenRewriter{base: base, renames: renames, fromDir: fromDir}
}

// lookup returns the local replacement for token, if any.
func (r *tokenRewriter) lookup(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" || strings.HasPrefix(token, "#") || r.base == nil {
		return "", false
	}
	abs, err := r.base.Parse(token)
	if err != nil {
		return "", false
	}
	fragment := abs.Fragment
	abs.Fragment = ""
	abs.RawFragment = ""
	target, ok := r.renames[abs.String()]
	if !ok || target == "" {
		return "", false
	}
	local := RelativePath(r.fromDir, target)
	if fragment != "" {
		local += "#" + fragment
	}
	return local, true
}

// css rewrites url() and @import targets.
func (r *tokenRewriter) css(text string) string {
	text = r.replace(text, cssURLPattern)
	return r.replace(text, cssImportPattern)
}

// js rewrites string literals that resolve to a mirrored URL.
func (r *tokenRewriter) js(text string) string {
	return r.replace(text, jsStringPattern)
}

// replace substitutes the first participating capture group of every match
// of pattern, leaving the surrounding quotes and syntax as they were.
func (r *tokenRewriter) replace(text string, pattern *regexp.Regexp) string {
	matches := pattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		for g := 1; 2*g+1 < len(m); g++ {
			start, end := m[2*g], m[2*g+1]
			if start < 0 {
				continue
			}
			if local, ok := r.lookup(text[start:end]); ok {
				b.WriteString(text[last:start])
				b.WriteString(local)
				last = end
			}
			break
		}
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// RelativePath returns target (a mirror-relative slash path) as seen from
// fromDir.
func RelativePath(fromDir, target string) string {
	if fromDir == "" || fromDir == "." {
		return target
	}
	rel, err := filepath.Rel(filepath.FromSlash(fromDir), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}

// dirOf returns the mirror-relative directory of a slash path.
func dirOf(local string) string {
	return path.Dir(local)
}
