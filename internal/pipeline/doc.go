// Package pipeline runs a mirror as a sequence of steps.
//
// The default pipeline is fetch, extract, plan, download and rewrite, each
// step moving the report through the mirror state machine. Optional steps
// add page metadata and an image metadata audit after the mirror is written.
// The download step is the only one that fans out; the steps themselves run
// strictly in order, so rewriting never starts before every download has
// finished.
//
// BatchProcessor mirrors several pages concurrently, one pipeline per page.
package pipeline
