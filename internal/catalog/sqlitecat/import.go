package sqlitecat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dupetag/internal/catalog"
)

// FileInput describes a file to register.
type FileInput struct {
	Path       string
	Size       int64
	Width      int64
	Height     int64
	BitRate    int64
	FrameRate  float64
	Duration   float64
	VideoCodec string
	CreatedAt  time.Time
	// Oshash and Phash are stored as fingerprints when set. Phash is the
	// 64-bit perceptual hash in hexadecimal.
	Oshash string
	Phash  string
}

// SceneInput describes a scene to register with its files.
type SceneInput struct {
	Title      string
	Date       string
	TagIDs     []string
	GalleryIDs []string
	Files      []FileInput
}

// AddScene inserts a scene and its files, returning the new scene id.
func (s *Store) AddScene(ctx context.Context, input SceneInput) (string, error) {
	if len(input.Files) == 0 {
		return "", catalog.Wrap("addScene", errors.New("at least one file is required"))
	}
	tagIDs, err := parseIDs(input.TagIDs)
	if err != nil {
		return "", catalog.Wrap("addScene", err)
	}
	galleryIDs, err := parseIDs(input.GalleryIDs)
	if err != nil {
		return "", catalog.Wrap("addScene", err)
	}
	for _, f := range input.Files {
		if f.Phash != "" {
			if _, err := parsePhash(f.Phash); err != nil {
				return "", catalog.Wrap("addScene", fmt.Errorf("file %s: %w", f.Path, err))
			}
		}
	}

	var sceneID int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		now := timestamp(time.Now())
		res, err := tx.ExecContext(ctx,
			"INSERT INTO scenes (title, date, created_at, updated_at) VALUES (?, ?, ?, ?)",
			input.Title, nullableString(strings.TrimSpace(input.Date)), now, now)
		if err != nil {
			return fmt.Errorf("insert scene: %w", err)
		}
		if sceneID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for position, f := range input.Files {
			if err := insertFile(ctx, tx, sceneID, position, f); err != nil {
				return err
			}
		}
		for _, tagID := range tagIDs {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO scenes_tags (scene_id, tag_id) VALUES (?, ?)", sceneID, tagID); err != nil {
				return fmt.Errorf("attach tag: %w", err)
			}
		}
		for _, galleryID := range galleryIDs {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO scenes_galleries (scene_id, gallery_id) VALUES (?, ?)", sceneID, galleryID); err != nil {
				return fmt.Errorf("attach gallery: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", catalog.Wrap("addScene", err)
	}
	return strconv.FormatInt(sceneID, 10), nil
}

func insertFile(ctx context.Context, tx *sql.Tx, sceneID int64, position int, f FileInput) error {
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO files (path, size, width, height, bit_rate, frame_rate, duration, video_codec, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Path, f.Size, f.Width, f.Height, f.BitRate, f.FrameRate, f.Duration,
		nullableString(f.VideoCodec), timestamp(created))
	if err != nil {
		return fmt.Errorf("insert file %s: %w", f.Path, err)
	}
	fileID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO scenes_files (scene_id, file_id, position) VALUES (?, ?, ?)", sceneID, fileID, position); err != nil {
		return fmt.Errorf("attach file: %w", err)
	}
	fingerprints := []catalog.Fingerprint{
		{Type: "oshash", Value: f.Oshash},
		{Type: "phash", Value: strings.ToLower(f.Phash)},
	}
	for _, fp := range fingerprints {
		if fp.Value == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO files_fingerprints (file_id, type, fingerprint) VALUES (?, ?, ?)", fileID, fp.Type, fp.Value); err != nil {
			return fmt.Errorf("insert %s fingerprint: %w", fp.Type, err)
		}
	}
	return nil
}
