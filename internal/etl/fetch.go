package etl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/RemyAM27/projet-dashboard/internal/observability"
)

// Stable resource URLs of the 2024 extracts on data.gouv.fr.
var rawResources = map[string]string{
	"Caract_2024.csv":    "https://www.data.gouv.fr/fr/datasets/r/83f0fb0e-e0ef-47fe-93dd-9aaee851674a",
	"Lieux_2024.csv":     "https://www.data.gouv.fr/fr/datasets/r/228b3cda-fdfb-4677-bd54-ab2107028d2d",
	"Vehicules_2024.csv": "https://www.data.gouv.fr/fr/datasets/r/fd30513c-6b11-4a56-b6dc-5ac87728794b",
	"Usagers_2024.csv":   "https://www.data.gouv.fr/fr/datasets/r/f57b1f58-386d-4048-8f78-2ebe435df868",
}

type Fetcher struct {
	logger *slog.Logger
	client *http.Client
}

func NewFetcher(logger *slog.Logger, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{logger: observability.Stage(logger, "fetch"), client: client}
}

// Run downloads the raw extracts into rawDir, skipping files that are
// already present. Downloads go to a temp file first so an interrupted
// transfer never leaves a truncated extract behind.
func (f *Fetcher) Run(ctx context.Context, rawDir string) error {
	ctx, span := observability.StartSpan(ctx, "etl.fetch")
	defer span.Finish()

	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return err
	}

	for name, url := range rawResources {
		dest := filepath.Join(rawDir, name)
		if _, err := os.Stat(dest); err == nil {
			f.logger.Info("raw file already present", "file", name)
			continue
		}

		if err := f.download(ctx, url, dest); err != nil {
			span.SetError(err)
			return fmt.Errorf("fetch %s: %w", name, err)
		}
		f.logger.Info("downloaded raw file", "file", name)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
