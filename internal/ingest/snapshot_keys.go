package ingest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"blockwatch/internal/blacklist"
	"blockwatch/internal/config"
)

const archiveStampLayout = "2006010215"

// SnapshotPrefix is the key prefix under which a feed's snapshots are stored.
func SnapshotPrefix(env string, feed config.FeedConfig) string {
	return fmt.Sprintf("%s/feeds/%s/%s/", env, feed.Source, feed.Name)
}

func LatestKey(env string, feed config.FeedConfig) string {
	return SnapshotPrefix(env, feed) + "latest.txt"
}

// ArchiveKey names the hourly archive copy of a raw download.
func ArchiveKey(env string, feed config.FeedConfig, at time.Time) string {
	return SnapshotPrefix(env, feed) + at.UTC().Format(archiveStampLayout) + ".txt"
}

// BootstrapContent keeps the first half of content's lines, rounding half to even.
func BootstrapContent(content string) string {
	lines := blacklist.SplitLines(content)
	keep := int(math.RoundToEven(float64(len(lines)) / 2))
	return strings.Join(lines[:keep], "\n")
}
