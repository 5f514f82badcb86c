// Package download fetches planned resources concurrently and writes them
// into the mirror directory.
//
// A Coordinator runs a bounded pool of workers. Each worker takes a rate
// limit permit through the fetcher, writes the body under the mirror root and
// records the final path in a shared RenameMap. A failed resource is recorded
// and never cancels the others; DownloadAll returns only after every resource
// has a terminal record.
package download
