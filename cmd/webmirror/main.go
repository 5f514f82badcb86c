// Package main provides the entry point for the webmirror CLI.
//
// webmirror saves a single web page for offline viewing: it downloads the
// page's same-origin stylesheets, scripts and images into a local directory
// and rewrites the page so it loads them from disk.
//
// Usage:
//
//	webmirror mirror <page-url>
//	webmirror mirror --batch 4 <url> <url> ...
//	webmirror history [page-url]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
