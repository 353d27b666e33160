package sqlitecat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dupetag/internal/catalog"
)

func (s *Store) UpdateScenes(ctx context.Context, update catalog.SceneUpdate) error {
	if len(update.IDs) == 0 {
		return nil
	}
	ids, err := parseIDs(update.IDs)
	if err != nil {
		return catalog.Wrap("updateScenes", err)
	}
	var tagIDs []any
	if update.Tags != nil {
		if tagIDs, err = parseIDs(update.Tags.TagIDs); err != nil {
			return catalog.Wrap("updateScenes", err)
		}
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM scenes WHERE id IN ("+makePlaceholders(len(ids))+")", ids...).Scan(&count); err != nil {
			return err
		}
		if count != len(ids) {
			return fmt.Errorf("%d of %d scenes not found", len(ids)-count, len(ids))
		}
		now := timestamp(time.Now())
		for _, id := range ids {
			if update.Title != nil {
				if _, err := tx.ExecContext(ctx, "UPDATE scenes SET title = ?, updated_at = ? WHERE id = ?", *update.Title, now, id); err != nil {
					return fmt.Errorf("update title: %w", err)
				}
			}
			if update.Tags == nil {
				continue
			}
			for _, tagID := range tagIDs {
				switch update.Tags.Mode {
				case catalog.TagModeAdd:
					_, err = tx.ExecContext(ctx, "INSERT OR IGNORE INTO scenes_tags (scene_id, tag_id) VALUES (?, ?)", id, tagID)
				case catalog.TagModeRemove:
					_, err = tx.ExecContext(ctx, "DELETE FROM scenes_tags WHERE scene_id = ? AND tag_id = ?", id, tagID)
				default:
					return fmt.Errorf("unsupported tag mode %q", update.Tags.Mode)
				}
				if err != nil {
					return fmt.Errorf("update tags: %w", err)
				}
			}
			if _, err := tx.ExecContext(ctx, "UPDATE scenes SET updated_at = ? WHERE id = ?", now, id); err != nil {
				return fmt.Errorf("touch scene: %w", err)
			}
		}
		return nil
	})
	return catalog.Wrap("updateScenes", err)
}

// FindTag looks a tag up by name, ignoring case.
func (s *Store) FindTag(ctx context.Context, name string) (catalog.Tag, bool, error) {
	var (
		id      int64
		current string
	)
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM tags WHERE name = ?", name).Scan(&id, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Tag{}, false, nil
	}
	if err != nil {
		return catalog.Tag{}, false, catalog.Wrap("findTag", err)
	}
	return catalog.Tag{ID: strconv.FormatInt(id, 10), Name: current}, true, nil
}

// FindTags returns tags whose name matches nameRegex, ordered by name.
func (s *Store) FindTags(ctx context.Context, nameRegex string) ([]catalog.Tag, error) {
	re, err := regexp.Compile(nameRegex)
	if err != nil {
		return nil, catalog.Wrap("findTags", fmt.Errorf("name regex: %w", err))
	}
	var tags []catalog.Tag
	err = forEachRow(ctx, s.db, "SELECT id, name FROM tags ORDER BY name", nil, func(rows *sql.Rows) error {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		if re.MatchString(name) {
			tags = append(tags, catalog.Tag{ID: strconv.FormatInt(id, 10), Name: name})
		}
		return nil
	})
	if err != nil {
		return nil, catalog.Wrap("findTags", err)
	}
	return tags, nil
}

func (s *Store) FindOrCreateTag(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", catalog.Wrap("findOrCreateTag", errors.New("tag name required"))
	}
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags (name) VALUES (?)", name); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id)
	})
	if err != nil {
		return "", catalog.Wrap("findOrCreateTag", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// DestroyTag deletes the tag and detaches it from every scene.
func (s *Store) DestroyTag(ctx context.Context, id string) error {
	tagID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return catalog.Wrap("destroyTag", fmt.Errorf("invalid id %q", id))
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", tagID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("tag %d not found", tagID)
		}
		return nil
	})
	return catalog.Wrap("destroyTag", err)
}

// CreateScene creates a scene owning fileIDs, detaching each file from the
// scene that held it.
func (s *Store) CreateScene(ctx context.Context, title string, fileIDs []string) (string, error) {
	if len(fileIDs) == 0 {
		return "", catalog.Wrap("createScene", errors.New("at least one file is required"))
	}
	ids, err := parseIDs(fileIDs)
	if err != nil {
		return "", catalog.Wrap("createScene", err)
	}
	var sceneID int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		now := timestamp(time.Now())
		res, err := tx.ExecContext(ctx, "INSERT INTO scenes (title, created_at, updated_at) VALUES (?, ?, ?)", title, now, now)
		if err != nil {
			return fmt.Errorf("insert scene: %w", err)
		}
		if sceneID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for position, fileID := range ids {
			var exists int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM files WHERE id = ?", fileID).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("file %v not found", fileID)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM scenes_files WHERE file_id = ?", fileID); err != nil {
				return fmt.Errorf("detach file: %w", err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO scenes_files (scene_id, file_id, position) VALUES (?, ?, ?)", sceneID, fileID, position); err != nil {
				return fmt.Errorf("attach file: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", catalog.Wrap("createScene", err)
	}
	return strconv.FormatInt(sceneID, 10), nil
}

var readOnlyStatement = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)

// RawQuery runs a read-only statement and returns its rows. Text columns are
// returned as strings.
func (s *Store) RawQuery(ctx context.Context, query string) ([][]any, error) {
	if !readOnlyStatement.MatchString(query) {
		return nil, catalog.Wrap("rawQuery", errors.New("only SELECT statements are allowed"))
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, catalog.Wrap("rawQuery", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, catalog.Wrap("rawQuery", err)
	}
	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, catalog.Wrap("rawQuery", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, catalog.Wrap("rawQuery", err)
	}
	return out, nil
}
