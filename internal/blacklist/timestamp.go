package blacklist

import (
	"strings"
	"time"

	"blockwatch/internal/domain"
)

const (
	dateColumn     = 3
	timeColumn     = 4
	midnight       = "00:00:00"
	timeFragment   = len(midnight)
	firstSeenStamp = "2006-01-02T15:04:05"
)

// NormalizeTime pads a missing or short time fragment to midnight and cuts
// longer ones to HH:MM:SS.
func NormalizeTime(fragment string) string {
	if len(fragment) < timeFragment {
		return midnight
	}
	return fragment[:timeFragment]
}

// FirstSeen scans content for the first line with a parseable date and time
// column and returns that moment in UTC.
//
// Lines whose address column equals exclude are skipped, so the result comes
// from some other entry of the same snapshot. Callers rely on this exact
// behavior; see the regression tests before changing it.
func FirstSeen(content string, exclude domain.Address) (time.Time, bool) {
	excluded := exclude.String()

	for line := range Lines(content) {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		columns := strings.Fields(line)
		if len(columns) <= dateColumn || columns[dateColumn] == "" {
			continue
		}
		if columns[0] == excluded {
			continue
		}

		var clock string
		if len(columns) > timeColumn {
			clock = columns[timeColumn]
		}

		seen, err := time.ParseInLocation(firstSeenStamp, columns[dateColumn]+"T"+NormalizeTime(clock), time.UTC)
		if err != nil {
			continue
		}
		return seen, true
	}

	return time.Time{}, false
}
