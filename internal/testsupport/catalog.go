package testsupport

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"dupetag/internal/catalog"
)

// Catalog is an in-memory catalog.Service for tests. It records every
// mutation and can be told to fail specific operations.
type Catalog struct {
	mu sync.Mutex

	scenes  map[string]*catalog.RawScene
	order   []string
	tags    map[string]string
	tagSeq  int
	sceneID int
	groups  [][]string

	// Fail, when set, is consulted before every operation; a non-nil
	// return is wrapped as a catalog error.
	Fail func(op string, ids []string) error

	Updates       []catalog.SceneUpdate
	CreatedScenes []string
	Destroyed     []string
	TagLookups    map[string]int
	Calls         map[string]int
}

var _ catalog.Service = (*Catalog)(nil)

// NewCatalog returns an empty fake catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		scenes:     map[string]*catalog.RawScene{},
		tags:       map[string]string{},
		TagLookups: map[string]int{},
		Calls:      map[string]int{},
		sceneID:    1000,
	}
}

// AddScenes stores scenes, replacing any with the same id.
func (c *Catalog) AddScenes(scenes ...catalog.RawScene) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range scenes {
		clone := cloneScene(s)
		if _, ok := c.scenes[s.ID]; !ok {
			c.order = append(c.order, s.ID)
		}
		c.scenes[s.ID] = &clone
	}
}

// AddGroup registers a duplicate group by scene ids.
func (c *Catalog) AddGroup(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = append(c.groups, append([]string(nil), ids...))
}

// AddTag creates a tag and returns its id.
func (c *Catalog) AddTag(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createTagLocked(name)
}

// Scene returns a copy of the stored scene.
func (c *Catalog) Scene(id string) (catalog.RawScene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scenes[id]
	if !ok {
		return catalog.RawScene{}, false
	}
	return cloneScene(*s), true
}

// SceneTagNames returns the sorted tag names attached to a scene.
func (c *Catalog) SceneTagNames(id string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scenes[id]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(s.Tags))
	for _, ref := range s.Tags {
		names = append(names, c.tags[ref.ID])
	}
	sort.Strings(names)
	return names
}

// TagID returns the id of the named tag.
func (c *Catalog) TagID(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, n := range c.tags {
		if n == name {
			return id, true
		}
	}
	return "", false
}

// SceneCount returns the number of stored scenes.
func (c *Catalog) SceneCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scenes)
}

func (c *Catalog) check(op string, ids ...string) error {
	c.Calls[op]++
	if c.Fail == nil {
		return nil
	}
	if err := c.Fail(op, ids); err != nil {
		return catalog.Wrap(op, err)
	}
	return nil
}

func (c *Catalog) FindDuplicateGroups(_ context.Context, _ catalog.Distance) ([][]catalog.RawScene, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("findDuplicateGroups"); err != nil {
		return nil, err
	}
	out := make([][]catalog.RawScene, 0, len(c.groups))
	for _, ids := range c.groups {
		group := make([]catalog.RawScene, 0, len(ids))
		for _, id := range ids {
			if s, ok := c.scenes[id]; ok {
				group = append(group, cloneScene(*s))
			}
		}
		out = append(out, group)
	}
	return out, nil
}

func (c *Catalog) FindScenes(_ context.Context, filter catalog.SceneFilter) ([]catalog.RawScene, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("findScenes"); err != nil {
		return nil, err
	}
	var titleRe *regexp.Regexp
	if filter.TitleRegex != "" {
		re, err := regexp.Compile(filter.TitleRegex)
		if err != nil {
			return nil, catalog.Wrap("findScenes", err)
		}
		titleRe = re
	}
	var out []catalog.RawScene
	for _, id := range c.order {
		s, ok := c.scenes[id]
		if !ok {
			continue
		}
		if titleRe != nil && !titleRe.MatchString(s.Title) {
			continue
		}
		if len(filter.TagIDs) > 0 && !hasAnyTag(s, filter.TagIDs) {
			continue
		}
		if len(filter.ExcludeTagIDs) > 0 && hasAnyTag(s, filter.ExcludeTagIDs) {
			continue
		}
		if filter.MinFileCount > 0 && len(s.Files) <= filter.MinFileCount {
			continue
		}
		if filter.Oshash != "" && !hasFingerprint(s, "oshash", filter.Oshash) {
			continue
		}
		if filter.Path != "" && !hasPath(s, filter.Path) {
			continue
		}
		out = append(out, cloneScene(*s))
	}
	return out, nil
}

func (c *Catalog) UpdateScenes(_ context.Context, update catalog.SceneUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("updateScenes", update.IDs...); err != nil {
		return err
	}
	for _, id := range update.IDs {
		if _, ok := c.scenes[id]; !ok {
			return catalog.Wrap("updateScenes", fmt.Errorf("scene %s not found", id))
		}
	}
	for _, id := range update.IDs {
		s := c.scenes[id]
		if update.Title != nil {
			s.Title = *update.Title
		}
		if update.Tags != nil {
			switch update.Tags.Mode {
			case catalog.TagModeAdd:
				for _, tagID := range update.Tags.TagIDs {
					if !hasAnyTag(s, []string{tagID}) {
						s.Tags = append(s.Tags, catalog.Ref{ID: tagID})
					}
				}
			case catalog.TagModeRemove:
				s.Tags = slices.DeleteFunc(s.Tags, func(ref catalog.Ref) bool {
					return slices.Contains(update.Tags.TagIDs, ref.ID)
				})
			}
		}
	}
	c.Updates = append(c.Updates, cloneUpdate(update))
	return nil
}

func (c *Catalog) FindTag(_ context.Context, name string) (catalog.Tag, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("findTag"); err != nil {
		return catalog.Tag{}, false, err
	}
	for id, n := range c.tags {
		if n == name {
			return catalog.Tag{ID: id, Name: n}, true, nil
		}
	}
	return catalog.Tag{}, false, nil
}

func (c *Catalog) FindTags(_ context.Context, nameRegex string) ([]catalog.Tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("findTags"); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(nameRegex)
	if err != nil {
		return nil, catalog.Wrap("findTags", err)
	}
	var out []catalog.Tag
	for id, name := range c.tags {
		if re.MatchString(name) {
			out = append(out, catalog.Tag{ID: id, Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Catalog) FindOrCreateTag(_ context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TagLookups[name]++
	if err := c.check("findOrCreateTag"); err != nil {
		return "", err
	}
	for id, n := range c.tags {
		if n == name {
			return id, nil
		}
	}
	return c.createTagLocked(name), nil
}

func (c *Catalog) DestroyTag(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("destroyTag", id); err != nil {
		return err
	}
	if _, ok := c.tags[id]; !ok {
		return catalog.Wrap("destroyTag", fmt.Errorf("tag %s not found", id))
	}
	delete(c.tags, id)
	for _, s := range c.scenes {
		s.Tags = slices.DeleteFunc(s.Tags, func(ref catalog.Ref) bool { return ref.ID == id })
	}
	c.Destroyed = append(c.Destroyed, id)
	return nil
}

func (c *Catalog) CreateScene(_ context.Context, title string, fileIDs []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("createScene", fileIDs...); err != nil {
		return "", err
	}
	if len(fileIDs) == 0 {
		return "", catalog.Wrap("createScene", errors.New("at least one file is required"))
	}
	var files []catalog.RawFile
	for _, fileID := range fileIDs {
		found := false
		for _, s := range c.scenes {
			for i, f := range s.Files {
				if f.ID == fileID {
					files = append(files, f)
					s.Files = slices.Delete(s.Files, i, i+1)
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return "", catalog.Wrap("createScene", fmt.Errorf("file %s not found", fileID))
		}
	}
	c.sceneID++
	id := strconv.Itoa(c.sceneID)
	c.scenes[id] = &catalog.RawScene{ID: id, Title: title, Files: files}
	c.order = append(c.order, id)
	c.CreatedScenes = append(c.CreatedScenes, id)
	return id, nil
}

// RawQuery ignores the statement text and answers the duplicate oshash
// report, the only query dupetag issues.
func (c *Catalog) RawQuery(_ context.Context, sql string) ([][]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("rawQuery"); err != nil {
		return nil, err
	}
	if !strings.Contains(sql, "oshash") {
		return nil, catalog.Wrap("rawQuery", fmt.Errorf("unsupported query %q", sql))
	}
	counts := map[string]int{}
	for _, s := range c.scenes {
		for _, f := range s.Files {
			if v, ok := f.Fingerprint("oshash"); ok {
				counts[v]++
			}
		}
	}
	keys := make([]string, 0, len(counts))
	for k, n := range counts {
		if n > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{k, int64(counts[k])})
	}
	return rows, nil
}

func (c *Catalog) createTagLocked(name string) string {
	for id, n := range c.tags {
		if n == name {
			return id
		}
	}
	c.tagSeq++
	id := "t" + strconv.Itoa(c.tagSeq)
	c.tags[id] = name
	return id
}

func hasAnyTag(s *catalog.RawScene, ids []string) bool {
	for _, ref := range s.Tags {
		if slices.Contains(ids, ref.ID) {
			return true
		}
	}
	return false
}

func hasFingerprint(s *catalog.RawScene, kind, value string) bool {
	for _, f := range s.Files {
		if v, ok := f.Fingerprint(kind); ok && v == value {
			return true
		}
	}
	return false
}

func hasPath(s *catalog.RawScene, path string) bool {
	for _, f := range s.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}

func cloneScene(s catalog.RawScene) catalog.RawScene {
	clone := s
	clone.Tags = append([]catalog.Ref(nil), s.Tags...)
	clone.Galleries = append([]catalog.Ref(nil), s.Galleries...)
	clone.Files = make([]catalog.RawFile, len(s.Files))
	for i, f := range s.Files {
		f.Fingerprints = append([]catalog.Fingerprint(nil), f.Fingerprints...)
		clone.Files[i] = f
	}
	return clone
}

func cloneUpdate(u catalog.SceneUpdate) catalog.SceneUpdate {
	clone := catalog.SceneUpdate{IDs: append([]string(nil), u.IDs...)}
	if u.Title != nil {
		title := *u.Title
		clone.Title = &title
	}
	if u.Tags != nil {
		clone.Tags = &catalog.TagMutation{Mode: u.Tags.Mode, TagIDs: append([]string(nil), u.Tags.TagIDs...)}
	}
	return clone
}
