package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"blockwatch/internal/geolite"
)

const geoLiteUpdateFallbackEvery = 24 * time.Hour

// StartGeoLiteUpdateRoutine refreshes the local ASN database on every
// instance. Each instance keeps its own copy on disk.
func StartGeoLiteUpdateRoutine(ctx context.Context, updater *geolite.Updater, interval time.Duration, refreshAtStartup bool) {
	if interval <= 0 {
		interval = geoLiteUpdateFallbackEvery
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if refreshAtStartup {
		triggerGeoLiteUpdate(ctx, updater, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			triggerGeoLiteUpdate(ctx, updater, "scheduled")
		}
	}
}

func triggerGeoLiteUpdate(ctx context.Context, updater *geolite.Updater, reason string) {
	err := updater.Update(ctx)
	switch {
	case errors.Is(err, geolite.ErrNoLicenseKey):
		log.Debug("GeoLite update skipped: license key missing", "reason", reason)
	case err != nil:
		log.Error("GeoLite update failed", "reason", reason, "error", err)
	default:
		log.Info("GeoLite database updated", "reason", reason)
	}
}
