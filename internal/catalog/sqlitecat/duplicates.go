package sqlitecat

import (
	"context"
	"database/sql"
	"fmt"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"dupetag/internal/catalog"
)

// FindDuplicateGroups groups scenes whose files have perceptual hashes within
// distance bits of each other. Groups are transitive: a chain of close hashes
// forms one group. Groups and their members are ordered by scene id.
func (s *Store) FindDuplicateGroups(ctx context.Context, distance catalog.Distance) ([][]catalog.RawScene, error) {
	type hashed struct {
		sceneID int64
		hash    uint64
	}
	var entries []hashed
	err := forEachRow(ctx, s.db, `SELECT sf.scene_id, fp.fingerprint
        FROM files_fingerprints fp JOIN scenes_files sf ON sf.file_id = fp.file_id
        WHERE fp.type = 'phash' ORDER BY sf.scene_id, fp.file_id`, nil, func(rows *sql.Rows) error {
		var (
			sceneID int64
			value   string
		)
		if err := rows.Scan(&sceneID, &value); err != nil {
			return err
		}
		hash, err := parsePhash(value)
		if err != nil {
			return fmt.Errorf("scene %d: %w", sceneID, err)
		}
		entries = append(entries, hashed{sceneID: sceneID, hash: hash})
		return nil
	})
	if err != nil {
		return nil, catalog.Wrap("findDuplicateScenes", err)
	}

	sets := newUnionFind()
	for i := range entries {
		sets.add(entries[i].sceneID)
		for j := 0; j < i; j++ {
			if entries[i].sceneID == entries[j].sceneID {
				continue
			}
			if bits.OnesCount64(entries[i].hash^entries[j].hash) <= int(distance) {
				sets.union(entries[i].sceneID, entries[j].sceneID)
			}
		}
	}

	members := map[int64][]int64{}
	for _, id := range sets.ids() {
		root := sets.find(id)
		members[root] = append(members[root], id)
	}
	var groups [][]int64
	for _, ids := range members {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		groups = append(groups, ids)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	out := make([][]catalog.RawScene, 0, len(groups))
	for _, ids := range groups {
		scenes, err := loadScenes(ctx, s.db, ids)
		if err != nil {
			return nil, catalog.Wrap("findDuplicateScenes", err)
		}
		out = append(out, scenes)
	}
	return out, nil
}

func parsePhash(value string) (uint64, error) {
	hash, err := strconv.ParseUint(strings.TrimSpace(value), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid phash %q", value)
	}
	return hash, nil
}

type unionFind struct {
	parent map[int64]int64
	order  []int64
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[int64]int64{}}
}

func (u *unionFind) add(id int64) {
	if _, ok := u.parent[id]; ok {
		return
	}
	u.parent[id] = id
	u.order = append(u.order, id)
}

func (u *unionFind) find(id int64) int64 {
	for u.parent[id] != id {
		u.parent[id] = u.parent[u.parent[id]]
		id = u.parent[id]
	}
	return id
}

func (u *unionFind) union(a, b int64) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

func (u *unionFind) ids() []int64 { return u.order }
