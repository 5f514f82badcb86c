package rewrite

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Asset is a downloaded text file to rewrite.
type Asset struct {
	// Local is the mirror-relative slash path of the file.
	Local string
	// URL is the absolute URL the file was downloaded from.
	URL string
}

// IsStylesheet reports whether the asset is rewritten as CSS.
func (a Asset) IsStylesheet() bool {
	return strings.EqualFold(path.Ext(a.Local), ".css")
}

// Assets rewrites the downloaded text assets in place. Stylesheet tokens
// are resolved against the stylesheet's own URL and made relative to its
// directory. Script literals are resolved against pageURL and made
// relative to the mirror root, where the page that runs them lives. It returns the paths whose content changed; an unreadable or
// unwritable asset is reported in the returned error while the others are
// still processed.
func Assets(root, pageURL string, assets []Asset, renames map[string]string) ([]string, error) {
	if len(renames) == 0 {
		return nil, nil
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}

	unique := slices.Clone(assets)
	slices.SortFunc(unique, func(a, b Asset) int { return strings.Compare(a.Local, b.Local) })
	unique = slices.CompactFunc(unique, func(a, b Asset) bool { return a.Local == b.Local })

	var (
		changed []string
		errs    []error
	)
	for _, asset := range unique {
		ok, err := rewriteAsset(root, page, asset, renames)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			changed = append(changed, asset.Local)
		}
	}
	if len(errs) > 0 {
		return changed, fmt.Errorf("failed to rewrite %d asset(s): %w", len(errs), errors.Join(errs...))
	}
	return changed, nil
}

func rewriteAsset(root string, page *url.URL, asset Asset, renames map[string]string) (bool, error) {
	local := asset.Local
	full := filepath.Join(root, filepath.FromSlash(local))
	data, err := os.ReadFile(full) //nolint:gosec // path is built from planned mirror paths
	if err != nil {
		return false, fmt.Errorf("read %s: %w", local, err)
	}

	content := string(data)
	var updated string
	if asset.IsStylesheet() {
		base, err := url.Parse(asset.URL)
		if err != nil {
			return false, fmt.Errorf("invalid url for %s: %w", local, err)
		}
		updated = newTokenRewriter(page.ResolveReference(base), renames, dirOf(local)).css(content)
	} else {
		updated = newTokenRewriter(page, renames, ".").js(content)
	}
	if updated == content {
		return false, nil
	}
	if err := os.WriteFile(full, []byte(updated), 0600); err != nil {
		return false, fmt.Errorf("write %s: %w", local, err)
	}
	return true, nil
}
