package torrent

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a client when the torrent no longer exists.
	ErrNotFound = errors.New("torrent not found")
	// ErrAuthFailed is returned when the daemon rejects the credentials.
	ErrAuthFailed = errors.New("authentication failed")
)

// RemoteError is a transport, authentication, or protocol failure talking to
// the torrent daemon.
type RemoteError struct {
	Op        string // list, stop, remove, ping
	TorrentID string // empty for list and ping
	Err       error
}

func (e *RemoteError) Error() string {
	if e.TorrentID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.TorrentID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
