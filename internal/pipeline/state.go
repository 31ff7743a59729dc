package pipeline

import "fmt"

// State is the position of a run in the acquisition state machine.
type State int

const (
	Idle State = iota
	QueryingManifest
	MaterializingFiles
	QueryingFallback
	DownloadingArchive
	Extracting
	Succeeded
	Failed
	Aborted
)

var stateNames = map[State]string{
	Idle:               "idle",
	QueryingManifest:   "querying-manifest",
	MaterializingFiles: "materializing-files",
	QueryingFallback:   "querying-fallback",
	DownloadingArchive: "downloading-archive",
	Extracting:         "extracting",
	Succeeded:          "succeeded",
	Failed:             "failed",
	Aborted:            "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal reports whether the state ends a run.
func (s State) IsTerminal() bool {
	switch s {
	case Succeeded, Failed, Aborted:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == Failed || to == Aborted {
		return true
	}
	switch from {
	case Idle:
		return to == QueryingManifest
	case QueryingManifest:
		return to == MaterializingFiles || to == QueryingFallback
	case MaterializingFiles:
		return to == Succeeded
	case QueryingFallback:
		return to == DownloadingArchive
	case DownloadingArchive:
		return to == Extracting
	case Extracting:
		return to == Succeeded
	default:
		return false
	}
}
