package dataset

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"nsac/internal/logging"
)

// Summary reports the outcome of an extraction run.
type Summary struct {
	Extracted int
	Skipped   int
}

// Extractor unpacks downloaded map archives.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor builds an extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{logger: logging.NewComponentLogger(logger, "extractor")}
}

// Extract walks the per-map directories under inputDir and unpacks every
// zip archive it finds into outputDir/<map id>/. A corrupt archive is
// logged and skipped rather than aborting the whole run.
func (e *Extractor) Extract(inputDir, outputDir string) (Summary, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output directory: %w", err)
	}

	mapDirs, err := os.ReadDir(inputDir)
	if err != nil {
		return Summary{}, fmt.Errorf("read input directory: %w", err)
	}

	summary := Summary{}
	for _, mapDir := range mapDirs {
		if !mapDir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(inputDir, mapDir.Name()))
		if err != nil {
			return summary, fmt.Errorf("read map directory %s: %w", mapDir.Name(), err)
		}
		for _, file := range files {
			if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".zip") {
				continue
			}
			archivePath := filepath.Join(inputDir, mapDir.Name(), file.Name())
			targetDir := filepath.Join(outputDir, mapDir.Name())

			e.logger.Info("unzipping archive",
				logging.String("map", mapDir.Name()),
				logging.String("archive", file.Name()))
			if err := extractArchive(archivePath, targetDir); err != nil {
				e.logger.Error("bad archive, skipping",
					logging.String("archive", archivePath),
					logging.Error(err))
				summary.Skipped++
				continue
			}
			summary.Extracted++
		}
	}
	return summary, nil
}

func extractArchive(archivePath, targetDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	for _, entry := range reader.File {
		destPath, err := safeJoin(targetDir, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", destPath, err)
			}
			continue
		}
		if err := extractEntry(entry, destPath); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(entry *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return dest.Close()
}

// safeJoin rejects archive entries that would escape the target directory.
func safeJoin(targetDir, name string) (string, error) {
	destPath := filepath.Join(targetDir, name)
	if !strings.HasPrefix(destPath, filepath.Clean(targetDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes target directory", name)
	}
	return destPath, nil
}
