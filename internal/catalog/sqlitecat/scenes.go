package sqlitecat

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"dupetag/internal/catalog"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FindScenes returns scenes matching every set field of filter, ordered by id.
func (s *Store) FindScenes(ctx context.Context, filter catalog.SceneFilter) ([]catalog.RawScene, error) {
	var titleRe *regexp.Regexp
	if filter.TitleRegex != "" {
		re, err := regexp.Compile(filter.TitleRegex)
		if err != nil {
			return nil, catalog.Wrap("findScenes", fmt.Errorf("title regex: %w", err))
		}
		titleRe = re
	}

	var (
		conds []string
		args  []any
	)
	if ids, err := parseIDs(filter.TagIDs); err != nil {
		return nil, catalog.Wrap("findScenes", err)
	} else if len(ids) > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM scenes_tags st WHERE st.scene_id = s.id AND st.tag_id IN ("+makePlaceholders(len(ids))+"))")
		args = append(args, ids...)
	}
	if ids, err := parseIDs(filter.ExcludeTagIDs); err != nil {
		return nil, catalog.Wrap("findScenes", err)
	} else if len(ids) > 0 {
		conds = append(conds, "NOT EXISTS (SELECT 1 FROM scenes_tags st WHERE st.scene_id = s.id AND st.tag_id IN ("+makePlaceholders(len(ids))+"))")
		args = append(args, ids...)
	}
	if filter.Oshash != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM scenes_files sf JOIN files_fingerprints fp ON fp.file_id = sf.file_id
            WHERE sf.scene_id = s.id AND fp.type = 'oshash' AND fp.fingerprint = ?)`)
		args = append(args, filter.Oshash)
	}
	if filter.MinFileCount > 0 {
		conds = append(conds, "(SELECT COUNT(1) FROM scenes_files sf WHERE sf.scene_id = s.id) > ?")
		args = append(args, filter.MinFileCount)
	}
	if filter.Path != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM scenes_files sf JOIN files f ON f.id = sf.file_id WHERE sf.scene_id = s.id AND f.path = ?)")
		args = append(args, filter.Path)
	}

	query := "SELECT s.id, s.title FROM scenes s"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY s.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, catalog.Wrap("findScenes", err)
	}
	var ids []int64
	for rows.Next() {
		var (
			id    int64
			title string
		)
		if err := rows.Scan(&id, &title); err != nil {
			rows.Close()
			return nil, catalog.Wrap("findScenes", err)
		}
		if titleRe != nil && !titleRe.MatchString(title) {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, catalog.Wrap("findScenes", err)
	}
	rows.Close()

	scenes, err := loadScenes(ctx, s.db, ids)
	if err != nil {
		return nil, catalog.Wrap("findScenes", err)
	}
	return scenes, nil
}

// loadScenes reads full scene entries in the order of ids. Every result set is
// drained before the next query since the store uses a single connection.
func loadScenes(ctx context.Context, q querier, ids []int64) ([]catalog.RawScene, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	in := makePlaceholders(len(ids))

	byID := make(map[int64]*catalog.RawScene, len(ids))
	err := forEachRow(ctx, q, "SELECT id, title, date FROM scenes WHERE id IN ("+in+")", args, func(rows *sql.Rows) error {
		var (
			id    int64
			title string
			date  sql.NullString
		)
		if err := rows.Scan(&id, &title, &date); err != nil {
			return err
		}
		byID[id] = &catalog.RawScene{
			ID:        strconv.FormatInt(id, 10),
			Title:     title,
			Date:      date.String,
			Tags:      []catalog.Ref{},
			Galleries: []catalog.Ref{},
			Files:     []catalog.RawFile{},
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load scenes: %w", err)
	}

	fileOwner := map[int64]*catalog.RawScene{}
	fileIndex := map[int64]int{}
	var fileIDs []any
	err = forEachRow(ctx, q, `SELECT sf.scene_id, f.id, f.path, f.size, f.width, f.height, f.bit_rate,
            f.frame_rate, f.duration, f.video_codec, f.created_at
        FROM scenes_files sf JOIN files f ON f.id = sf.file_id
        WHERE sf.scene_id IN (`+in+`) ORDER BY sf.scene_id, sf.position, f.id`, args, func(rows *sql.Rows) error {
		var (
			sceneID, fileID, size  int64
			path, createdAt        string
			width, height, bitRate sql.NullInt64
			frameRate, duration    sql.NullFloat64
			codec                  sql.NullString
		)
		if err := rows.Scan(&sceneID, &fileID, &path, &size, &width, &height, &bitRate, &frameRate, &duration, &codec, &createdAt); err != nil {
			return err
		}
		scene := byID[sceneID]
		if scene == nil {
			return nil
		}
		scene.Files = append(scene.Files, catalog.RawFile{
			ID:         strconv.FormatInt(fileID, 10),
			Path:       path,
			Size:       catalog.NumberOf(size),
			Width:      nullInt(width),
			Height:     nullInt(height),
			BitRate:    nullInt(bitRate),
			FrameRate:  nullFloat(frameRate),
			Duration:   nullFloat(duration),
			VideoCodec: codec.String,
			CreatedAt:  createdAt,
		})
		fileOwner[fileID] = scene
		fileIndex[fileID] = len(scene.Files) - 1
		fileIDs = append(fileIDs, fileID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}

	if len(fileIDs) > 0 {
		err = forEachRow(ctx, q, "SELECT file_id, type, fingerprint FROM files_fingerprints WHERE file_id IN ("+makePlaceholders(len(fileIDs))+") ORDER BY file_id, type", fileIDs, func(rows *sql.Rows) error {
			var (
				fileID      int64
				kind, value string
			)
			if err := rows.Scan(&fileID, &kind, &value); err != nil {
				return err
			}
			if scene := fileOwner[fileID]; scene != nil {
				file := &scene.Files[fileIndex[fileID]]
				file.Fingerprints = append(file.Fingerprints, catalog.Fingerprint{Type: kind, Value: value})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load fingerprints: %w", err)
		}
	}

	refs := []struct {
		query string
		add   func(*catalog.RawScene, catalog.Ref)
	}{
		{"SELECT scene_id, tag_id FROM scenes_tags WHERE scene_id IN (" + in + ") ORDER BY scene_id, tag_id",
			func(s *catalog.RawScene, r catalog.Ref) { s.Tags = append(s.Tags, r) }},
		{"SELECT scene_id, gallery_id FROM scenes_galleries WHERE scene_id IN (" + in + ") ORDER BY scene_id, gallery_id",
			func(s *catalog.RawScene, r catalog.Ref) { s.Galleries = append(s.Galleries, r) }},
	}
	for _, ref := range refs {
		err = forEachRow(ctx, q, ref.query, args, func(rows *sql.Rows) error {
			var sceneID, refID int64
			if err := rows.Scan(&sceneID, &refID); err != nil {
				return err
			}
			if scene := byID[sceneID]; scene != nil {
				ref.add(scene, catalog.Ref{ID: strconv.FormatInt(refID, 10)})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load scene references: %w", err)
		}
	}

	scenes := make([]catalog.RawScene, 0, len(ids))
	for _, id := range ids {
		if scene := byID[id]; scene != nil {
			scenes = append(scenes, *scene)
		}
	}
	return scenes, nil
}

func forEachRow(ctx context.Context, q querier, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func parseIDs(values []string) ([]any, error) {
	ids := make([]any, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func nullInt(v sql.NullInt64) catalog.Number {
	if !v.Valid {
		return ""
	}
	return catalog.NumberOf(v.Int64)
}

func nullFloat(v sql.NullFloat64) catalog.Number {
	if !v.Valid {
		return ""
	}
	return catalog.FloatNumber(v.Float64)
}
