package journal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// archiveJournal compresses a journal file using zstd and moves it to the
// archive directory.
func archiveJournal(journalPath, archiveDir, name string) error {
	src, err := os.Open(journalPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer src.Close()

	srcInfo, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat journal: %w", err)
	}
	originalSize := srcInfo.Size()

	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s.journal.zst", name))
	dst, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}

	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		os.Remove(archivePath)
		return fmt.Errorf("failed to compress: %w", err)
	}

	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(archivePath)
		return fmt.Errorf("failed to close encoder: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(archivePath)
		return fmt.Errorf("failed to close archive: %w", err)
	}

	dstInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	log.Info().
		Str("name", name).
		Int64("original_bytes", originalSize).
		Int64("compressed_bytes", dstInfo.Size()).
		Str("archive_path", archivePath).
		Msg("Journal compressed")

	if err := os.Remove(journalPath); err != nil {
		return fmt.Errorf("archive created at %s but failed to remove journal %s: %w",
			archivePath, journalPath, err)
	}

	return nil
}

// CleanupArchive removes archived journal files older than the retention
// period.
func CleanupArchive(archiveDir string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	if _, err := os.Stat(archiveDir); os.IsNotExist(err) {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		return fmt.Errorf("failed to read archive directory: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".zst" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to stat archive file, skipping")
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(archiveDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("file", path).Msg("Failed to delete old archive file")
				continue
			}
			deleted++
		}
	}

	if deleted > 0 {
		log.Info().
			Str("archive_dir", archiveDir).
			Int("deleted_files", deleted).
			Msg("Archive cleanup completed")
	}

	return nil
}
