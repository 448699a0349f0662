package transmission

import "github.com/blackwell-systems/seedprune/internal/torrent"

// Transmission tr_torrent_activity values.
const (
	statusStopped      = 0
	statusCheckWait    = 1
	statusCheck        = 2
	statusDownloadWait = 3
	statusDownload     = 4
	statusSeedWait     = 5
	statusSeed         = 6
)

type rpcTracker struct {
	Announce string `json:"announce"`
	Tier     int    `json:"tier"`
}

type rpcTorrent struct {
	HashString     string       `json:"hashString"`
	Name           string       `json:"name"`
	Status         int          `json:"status"`
	Error          int          `json:"error"`
	ErrorString    string       `json:"errorString"`
	UploadRatio    float64      `json:"uploadRatio"`
	SecondsSeeding int64        `json:"secondsSeeding"`
	Trackers       []rpcTracker `json:"trackers"`
}

func (t *rpcTorrent) snapshot() torrent.Snapshot {
	urls := make([]string, 0, len(t.Trackers))
	for _, tr := range t.Trackers {
		if tr.Announce != "" {
			urls = append(urls, tr.Announce)
		}
	}

	// Transmission reports -1 (not available) and -2 (infinite) ratios.
	ratio := t.UploadRatio
	if ratio < 0 {
		ratio = 0
	}

	return torrent.Snapshot{
		ID:                  t.HashString,
		Name:                t.Name,
		Status:              mapStatus(t.Status),
		ErrorCode:           torrent.ErrorCode(t.Error),
		ErrorMessage:        t.ErrorString,
		Ratio:               ratio,
		SecondsSeeding:      t.SecondsSeeding,
		TrackerAnnounceURLs: urls,
	}
}

// mapStatus maps Transmission status codes to torrent statuses.
func mapStatus(status int) torrent.Status {
	switch status {
	case statusStopped:
		return torrent.StatusStopped
	case statusCheckWait, statusCheck:
		return torrent.StatusChecking
	case statusDownload:
		return torrent.StatusDownloading
	case statusSeed:
		return torrent.StatusSeeding
	default: // queued to download or seed
		return torrent.StatusOther
	}
}
