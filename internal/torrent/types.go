// Package torrent defines the read-only torrent view the rest of seedprune
// works against, independent of the RPC transport that produced it.
package torrent

// Status is the coarse transfer state of a torrent.
type Status string

const (
	StatusStopped     Status = "stopped"
	StatusSeeding     Status = "seeding"
	StatusDownloading Status = "downloading"
	StatusChecking    Status = "checking"
	StatusOther       Status = "other"
)

// ErrorCode is the numeric error class reported by the daemon for a torrent.
//
// The values follow the Transmission RPC "error" field (libtransmission's
// tr_stat_errtype). Another transport must remap its own codes onto these.
type ErrorCode int

const (
	// ErrorNone means the torrent has no error.
	ErrorNone ErrorCode = 0
	// ErrorTrackerWarning is a non-fatal warning returned by a tracker.
	ErrorTrackerWarning ErrorCode = 1
	// ErrorTrackerError is a fatal error returned by a tracker, e.g. the
	// torrent was deleted from the tracker.
	ErrorTrackerError ErrorCode = 2
	// ErrorLocal is a local problem such as missing data on disk.
	ErrorLocal ErrorCode = 3
)

// Snapshot is a point-in-time view of one torrent, fetched fresh every sweep.
// It is never mutated after it is built.
type Snapshot struct {
	ID                  string // info hash
	Name                string
	Status              Status
	ErrorCode           ErrorCode
	ErrorMessage        string
	Ratio               float64 // >= 0
	SecondsSeeding      int64
	TrackerAnnounceURLs []string
}

// HasError reports whether the daemon flagged the torrent with any error.
func (s *Snapshot) HasError() bool {
	return s.ErrorCode != ErrorNone
}
