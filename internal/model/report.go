package model

import (
	"sort"
	"time"
)

// MirrorReport collects everything produced by one mirror run.
// Pipeline steps run sequentially and are the only writers; the download
// step hands its records over after every worker has finished.
type MirrorReport struct {
	// URL is the page URL as given by the user.
	URL string `json:"url"`

	// Host is the page host used for same-origin filtering.
	Host string `json:"host"`

	// MirrorDir is the absolute mirror directory. Empty until created.
	MirrorDir string `json:"mirrorDir,omitempty"`

	// State is the current state machine position.
	State MirrorState `json:"state"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Page is the fetch result for the page itself.
	Page *PageFetchResult `json:"-"`

	// References are all extracted references in extraction order.
	References []ResourceReference `json:"references"`

	// Planned are the references that survived planning, in extraction order.
	// Duplicate references to the same URL share one local path.
	Planned []PlannedResource `json:"planned"`

	// Records are the download results, one per planned resource.
	Records []DownloadRecord `json:"-"`

	// Outcomes has one entry per extracted reference.
	Outcomes []ResourceOutcome `json:"outcomes"`

	// RenameMap maps original identifiers to mirror-relative paths.
	RenameMap map[string]string `json:"renameMap"`

	// RewrittenAssets lists CSS/JS files whose content changed during rewriting.
	RewrittenAssets []string `json:"rewrittenAssets,omitempty"`

	// PageInfo holds descriptive page metadata when available.
	PageInfo *PageInfo `json:"pageInfo,omitempty"`

	// ImageFindings lists identifying metadata found in mirrored images.
	ImageFindings []ImageFinding `json:"imageFindings,omitempty"`

	// Error is the fatal error of the run, if any.
	Error error `json:"-"`

	// ErrorMessage is Error.Error() for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// TimedOut is set when the run was cancelled before completion.
	TimedOut bool `json:"timedOut,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performedSteps"`
}

// NewMirrorReport creates a report in the Fetching state.
func NewMirrorReport(pageURL string) *MirrorReport {
	return &MirrorReport{
		URL:            pageURL,
		State:          StateFetching,
		StartedAt:      time.Now(),
		References:     make([]ResourceReference, 0),
		Planned:        make([]PlannedResource, 0),
		Records:        make([]DownloadRecord, 0),
		Outcomes:       make([]ResourceOutcome, 0),
		RenameMap:      make(map[string]string),
		PerformedSteps: make([]string, 0),
	}
}

// Transition moves the report to next, rejecting moves the state machine forbids.
func (r *MirrorReport) Transition(next MirrorState) error {
	if !r.State.CanTransition(next) {
		return &InvalidTransitionError{From: r.State, To: next}
	}
	r.State = next
	if next.IsTerminal() {
		r.FinishedAt = time.Now()
	}
	return nil
}

// Fail records err and moves the report to Failed.
func (r *MirrorReport) Fail(err error) error {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	return r.Transition(StateFailed)
}

// AddOutcome appends a report line.
func (r *MirrorReport) AddOutcome(o ResourceOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Summary counts outcomes by status.
type Summary struct {
	Downloaded int   `json:"downloaded"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	Bytes      int64 `json:"bytes"`
}

// Total returns the number of references accounted for.
func (s Summary) Total() int {
	return s.Downloaded + s.Skipped + s.Failed
}

// Summary returns outcome counts for the run.
func (r *MirrorReport) Summary() Summary {
	var s Summary
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusDownloaded:
			s.Downloaded++
			s.Bytes += o.Bytes
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Duration returns the elapsed run time, or the time since start if unfinished.
func (r *MirrorReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SortedRenameKeys returns the RenameMap keys sorted lexicographically.
func (r *MirrorReport) SortedRenameKeys() []string {
	keys := make([]string, 0, len(r.RenameMap))
	for k := range r.RenameMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
