package data

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlexVialaBellander/flower/pkg/logger"
)

// Download fetches the CIFAR-10 binary tarball from url and extracts the
// batch files into destDir. A dataset already present on disk is left alone.
func Download(ctx context.Context, url, destDir string) error {
	log := logger.Get().With().Str("component", "data").Logger()

	if _, err := os.Stat(filepath.Join(destDir, trainBatchFiles[0])); err == nil {
		log.Info().Str("dir", destDir).Msg("Dataset already present, skipping download")
		return nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	log.Info().Str("url", url).Msg("Downloading CIFAR-10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching dataset", resp.StatusCode)
	}

	if err := extractTarGz(resp.Body, destDir); err != nil {
		return err
	}

	log.Info().Str("dir", destDir).Msg("Dataset ready")
	return nil
}

// extractTarGz writes the archive's regular files into destDir, flattening
// the tarball's leading cifar-10-batches-bin/ directory.
func extractTarGz(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(hdr.Name)
		if strings.HasPrefix(name, ".") || name == "" {
			continue
		}

		dest := filepath.Join(destDir, name)
		f, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", dest, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", dest, err)
		}
	}
}
