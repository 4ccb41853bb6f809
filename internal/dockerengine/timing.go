package dockerengine

import (
	"strconv"
	"strings"
	"time"
)

// sentinelFinishedAt is the container engine's "never set" timestamp.
const sentinelFinishedAt = "0001-01-01T00:00:00Z"

// parseEngineTimestamp parses an RFC-3339 timestamp into Unix seconds: the
// part before the final "." is parsed as a whole-second instant, and the
// fractional seconds component is parsed separately as a float64 and summed
// onto it. The result is a single float64, so for present-day timestamps its
// resolution is about a quarter of a microsecond rather than a nanosecond.
func parseEngineTimestamp(ts string) (float64, error) {
	dot := strings.LastIndex(ts, ".")
	if dot < 0 {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return 0, err
		}
		return float64(t.Unix()), nil
	}

	wholePart := ts[:dot]
	fracPart := strings.TrimSuffix(ts[dot+1:], "Z")

	t, err := time.Parse("2006-01-02T15:04:05", wholePart)
	if err != nil {
		return 0, err
	}

	frac, err := strconv.ParseFloat("0."+fracPart, 64)
	if err != nil {
		return 0, err
	}

	return float64(t.Unix()) + frac, nil
}

// execTime computes FinishedAt - StartedAt. If finishedAt is the sentinel
// "never set" value the container was killed before the engine recorded a
// finish time, and the sentinel exec_time -1.0 is returned.
func execTime(startedAt, finishedAt string) (float64, error) {
	if finishedAt == sentinelFinishedAt {
		return -1.0, nil
	}

	started, err := parseEngineTimestamp(startedAt)
	if err != nil {
		return 0, err
	}
	finished, err := parseEngineTimestamp(finishedAt)
	if err != nil {
		return 0, err
	}
	return finished - started, nil
}
