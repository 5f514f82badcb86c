// Package planner decides where each same-origin resource lives inside a
// mirror.
//
// Planning resolves a reference against the page URL, drops cross-origin and
// non-HTTP references, picks a category from the file extension (falling back
// to a content-type probe), and sanitizes the filename. Distinct URLs that
// sanitize to the same local path are disambiguated by a PathRegistry with a
// numeric suffix: the first claimant keeps "name.ext", later ones receive
// "name-2.ext", "name-3.ext" and so on.
package planner
