package geolite

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const (
	asnEditionID       = "GeoLite2-ASN"
	asnFileName        = "GeoLite2-ASN.mmdb"
	maxMindDownloadURL = "https://download.maxmind.com/app/geoip_download"
	userAgent          = "blockwatch-geolite-updater/1.0"
)

// ErrNoLicenseKey indicates that no MaxMind license key was configured.
var ErrNoLicenseKey = errors.New("geolite: license key is not configured")

// Updater downloads the GeoLite2-ASN edition into the enricher's path and reloads it.
type Updater struct {
	licenseKey string
	enricher   *ASNEnricher
	client     *http.Client
	baseURL    string
	group      singleflight.Group
}

func NewUpdater(licenseKey string, enricher *ASNEnricher) *Updater {
	return &Updater{
		licenseKey: strings.TrimSpace(licenseKey),
		enricher:   enricher,
		client:     &http.Client{Timeout: 2 * time.Minute},
		baseURL:    maxMindDownloadURL,
	}
}

// Update fetches the latest database. Concurrent callers share one download.
func (u *Updater) Update(ctx context.Context) error {
	_, err, _ := u.group.Do("update", func() (interface{}, error) {
		if u.licenseKey == "" {
			return nil, ErrNoLicenseKey
		}
		if err := u.download(ctx, u.enricher.Path()); err != nil {
			return nil, err
		}
		if err := u.enricher.Reload(); err != nil {
			return nil, fmt.Errorf("reload geolite: %w", err)
		}
		return nil, nil
	})
	return err
}

func (u *Updater) download(ctx context.Context, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.downloadURL(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", asnEditionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("download %s: unexpected status %d: %s", asnEditionID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	gzipReader, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: open gzip: %w", asnEditionID, err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: read tar: %w", asnEditionID, err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != asnFileName {
			continue
		}

		if err := writeToFile(destPath, tarReader); err != nil {
			return fmt.Errorf("%s: write file: %w", asnEditionID, err)
		}
		log.Info("GeoLite ASN database downloaded", "path", destPath)
		return nil
	}

	return fmt.Errorf("%s: mmdb file not found in archive", asnEditionID)
}

func writeToFile(destPath string, data io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), "geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if _, err := io.Copy(tmpFile, data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return os.Rename(tmpFile.Name(), destPath)
}

func (u *Updater) downloadURL() string {
	return fmt.Sprintf("%s?edition_id=%s&license_key=%s&suffix=tar.gz", u.baseURL, asnEditionID, u.licenseKey)
}
