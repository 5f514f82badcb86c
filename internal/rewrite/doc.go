// Package rewrite points references in the mirrored page and its
// stylesheets and scripts at the local copies.
//
// The page is rewritten attribute by attribute: it is parsed, a list of
// edits is collected for link/script/img URL attributes whose value (or
// its resolution against the page URL) is a rename key, the edits are
// applied and the tree is rendered again.
//
// Stylesheets and inline styles are rewritten token by token. Only url()
// and @import targets are considered; each is resolved against the URL of
// the stylesheet (the page URL for inline styles) and replaced when the
// resolved URL was mirrored. Scripts get the same treatment for their
// quoted string literals, resolved against the page URL as a browser
// would. Text that merely contains a mirrored file name is never touched.
package rewrite
