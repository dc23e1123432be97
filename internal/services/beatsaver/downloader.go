package beatsaver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/unicode/norm"

	"nsac/internal/config"
	"nsac/internal/logging"
)

// metaFilename is the per-map metadata file name inside the output
// directory.
const metaFilename = "meta.json"

// Downloader scrapes the latest maps into a per-map directory registry.
type Downloader struct {
	client    *Client
	outputDir string
	pageDelay time.Duration
	logger    *slog.Logger

	// known indexes map ID to its meta.json path.
	known map[string]string
}

// NewDownloader builds a downloader writing into outputDir.
func NewDownloader(cfg *config.Config, client *Client, outputDir string, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Downloader{
		client:    client,
		outputDir: outputDir,
		pageDelay: time.Duration(cfg.BeatSaver.PageDelay) * time.Second,
		logger:    logging.NewComponentLogger(logger, "downloader"),
		known:     make(map[string]string),
	}
}

// Run downloads up to limit maps published before the given timestamp,
// skipping maps already present and resuming any whose level archive is
// missing. It returns the number of maps downloaded by this run.
func (d *Downloader) Run(ctx context.Context, before string, limit int) (int, error) {
	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	if err := d.scanExisting(ctx); err != nil {
		return 0, err
	}

	count := 0
	d.logger.Info("downloading latest maps",
		logging.String("before", before),
		logging.Int("limit", limit))

	for {
		docs, err := d.client.Latest(ctx, before)
		if err != nil {
			return count, err
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			if count >= limit {
				return count, nil
			}
			if _, seen := d.known[doc.ID]; seen {
				d.logger.Info("map already downloaded", logging.String("map", doc.ID))
				continue
			}
			if err := d.fetchMap(ctx, doc); err != nil {
				return count, err
			}
			count++
		}

		before = docs[len(docs)-1].LastPublishedAt
		d.logger.Info("requesting more maps",
			logging.Int("downloaded", count),
			logging.String("before", before))

		if d.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return count, ctx.Err()
			case <-time.After(d.pageDelay):
			}
		}
	}
	return count, nil
}

func (d *Downloader) fetchMap(ctx context.Context, doc MapDoc) error {
	metaPath, err := d.writeMeta(doc)
	if err != nil {
		return err
	}
	d.known[doc.ID] = metaPath

	filename, err := doc.LevelFilename()
	if err != nil {
		return err
	}
	d.logger.Info("downloading level archive",
		logging.String("map", doc.ID),
		logging.String("title", norm.NFC.String(doc.Name)))
	return d.client.DownloadLevel(ctx, doc.Versions[0].DownloadURL, filepath.Join(d.mapDir(doc.ID), filename))
}

func (d *Downloader) writeMeta(doc MapDoc) (string, error) {
	mapDir := d.mapDir(doc.ID)
	if err := os.MkdirAll(mapDir, 0o755); err != nil {
		return "", fmt.Errorf("create map directory: %w", err)
	}
	metaPath := filepath.Join(mapDir, metaFilename)
	if err := os.WriteFile(metaPath, doc.Raw, 0o644); err != nil {
		return "", fmt.Errorf("write meta file for map %s: %w", doc.ID, err)
	}
	return metaPath, nil
}

// scanExisting indexes maps already on disk and finishes any download that
// left a meta file without its level archive.
func (d *Downloader) scanExisting(ctx context.Context) error {
	d.logger.Info("checking for existing maps", logging.String("dir", d.outputDir))

	entries, err := os.ReadDir(d.outputDir)
	if err != nil {
		return fmt.Errorf("scan output directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metaPath := filepath.Join(d.outputDir, entry.Name(), metaFilename)
		if _, err := os.Stat(metaPath); err != nil {
			continue
		}
		d.known[entry.Name()] = metaPath

		if err := d.resumeIfIncomplete(ctx, metaPath); err != nil {
			return err
		}
	}
	return nil
}

func (d *Downloader) resumeIfIncomplete(ctx context.Context, metaPath string) error {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read meta file %s: %w", metaPath, err)
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode meta file %s: %w", metaPath, err)
	}

	filename, err := m.LevelFilename()
	if err != nil {
		return err
	}
	levelPath := filepath.Join(filepath.Dir(metaPath), filename)
	if _, err := os.Stat(levelPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat level file %s: %w", levelPath, err)
	}

	d.logger.Info("map is missing its level file, resuming",
		logging.String("map", m.ID))
	return d.client.DownloadLevel(ctx, m.Versions[0].DownloadURL, levelPath)
}

func (d *Downloader) mapDir(id string) string {
	return filepath.Join(d.outputDir, id)
}
