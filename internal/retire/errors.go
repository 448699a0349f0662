package retire

import "fmt"

// Actions attempted against the daemon during retirement.
const (
	ActionStop   = "stop"
	ActionRemove = "remove"
)

// RetirementError reports a failed stop or remove call for one torrent.
// The torrent is left for the next sweep to re-evaluate.
type RetirementError struct {
	TorrentID string
	Name      string
	Action    string
	Err       error
}

func (e *RetirementError) Error() string {
	return fmt.Sprintf("failed to %s torrent %s (%s): %v", e.Action, e.Name, e.TorrentID, e.Err)
}

func (e *RetirementError) Unwrap() error {
	return e.Err
}
