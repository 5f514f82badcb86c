// Package model defines the data types shared by the mirror pipeline.
//
// The types follow the life of a single mirror run:
//
//   - PageFetchResult: the outcome of one HTTP GET
//   - ResourceReference: a stylesheet, script or image reference found in the page
//   - PlannedResource: a same-origin reference with its local path decided
//   - DownloadRecord: the terminal outcome of downloading one planned resource
//   - MirrorReport: everything collected during a run, including its MirrorState
//
// None of these types are persisted between runs except through the history
// database, which stores a summary for display only.
package model
