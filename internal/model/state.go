package model

import "fmt"

// MirrorState is the position of a run in the mirror state machine:
//
//	Fetching -> Extracting -> Planning -> Downloading -> Rewriting -> Done
//	Fetching -> Failed
type MirrorState int

const (
	// StateFetching is the initial state; the page is being fetched.
	StateFetching MirrorState = iota
	// StateExtracting means resource references are being extracted.
	StateExtracting
	// StatePlanning means local paths are being decided.
	StatePlanning
	// StateDownloading means resources are being downloaded concurrently.
	StateDownloading
	// StateRewriting means references are being rewritten and the page persisted.
	StateRewriting
	// StateDone is terminal; the mirror is complete, possibly partial.
	StateDone
	// StateFailed is terminal; the page could not be fetched.
	StateFailed
)

// String returns the state name.
func (s MirrorState) String() string {
	switch s {
	case StateFetching:
		return "Fetching"
	case StateExtracting:
		return "Extracting"
	case StatePlanning:
		return "Planning"
	case StateDownloading:
		return "Downloading"
	case StateRewriting:
		return "Rewriting"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s MirrorState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MirrorState) UnmarshalText(text []byte) error {
	for candidate := StateFetching; candidate <= StateFailed; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown mirror state %q", text)
}

// IsTerminal reports whether no further transition is possible.
func (s MirrorState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether moving from s to next is allowed.
// Failed is reachable only from Fetching.
func (s MirrorState) CanTransition(next MirrorState) bool {
	switch s {
	case StateFetching:
		return next == StateExtracting || next == StateFailed
	case StateExtracting:
		return next == StatePlanning
	case StatePlanning:
		return next == StateDownloading
	case StateDownloading:
		return next == StateRewriting
	case StateRewriting:
		return next == StateDone
	default:
		return false
	}
}

// InvalidTransitionError is returned when a run attempts an illegal state change.
type InvalidTransitionError struct {
	From MirrorState
	To   MirrorState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid mirror state transition: %s -> %s", e.From, e.To)
}
