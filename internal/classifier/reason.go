package classifier

// Reason explains why a torrent qualifies for retirement.
type Reason string

const (
	ReasonUnregistered     Reason = "unregistered_by_tracker"
	ReasonLocalDataError   Reason = "local_data_error"
	ReasonRatioExceeded    Reason = "ratio_threshold_exceeded"
	ReasonSeedTimeExceeded Reason = "seed_time_threshold_exceeded"
)

// Reasons lists every reason in evaluation order.
var Reasons = []Reason{
	ReasonUnregistered,
	ReasonLocalDataError,
	ReasonRatioExceeded,
	ReasonSeedTimeExceeded,
}

// Description returns the human-readable text used in audit lines.
func (r Reason) Description() string {
	switch r {
	case ReasonUnregistered:
		return "unregistered by tracker"
	case ReasonLocalDataError:
		return "local data error"
	case ReasonRatioExceeded:
		return "max_ratio threshold passed"
	case ReasonSeedTimeExceeded:
		return "min_time threshold passed"
	default:
		return string(r)
	}
}

// ParseReason accepts either the identifier form or the description form.
func ParseReason(s string) (Reason, bool) {
	for _, r := range Reasons {
		if s == string(r) || s == r.Description() {
			return r, true
		}
	}
	return "", false
}
