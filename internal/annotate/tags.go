package annotate

import (
	"context"
	"fmt"
	"sync"

	"dupetag/internal/catalog"
)

// ReasonTagPattern matches the names of reason tags.
const ReasonTagPattern = `^\[Reason`

// ReasonTagName returns the tag name used for a remove label.
func ReasonTagName(label string) string {
	return fmt.Sprintf("[Reason: %s]", label)
}

// TagCache memoizes tag ids by name for the lifetime of one run.
type TagCache struct {
	svc catalog.Service

	mu  sync.Mutex
	ids map[string]string
}

// NewTagCache returns an empty cache backed by svc.
func NewTagCache(svc catalog.Service) *TagCache {
	return &TagCache{svc: svc, ids: make(map[string]string)}
}

// Ensure returns the id of the named tag, creating the tag when missing.
func (c *TagCache) Ensure(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	id, ok := c.ids[name]
	c.mu.Unlock()
	if ok {
		return id, nil
	}
	id, err := c.svc.FindOrCreateTag(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve tag %q: %w", name, err)
	}
	c.mu.Lock()
	c.ids[name] = id
	c.mu.Unlock()
	return id, nil
}

// Lookup returns the id of the named tag without creating it.
func (c *TagCache) Lookup(ctx context.Context, name string) (string, bool, error) {
	c.mu.Lock()
	id, ok := c.ids[name]
	c.mu.Unlock()
	if ok {
		return id, true, nil
	}
	tag, found, err := c.svc.FindTag(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("find tag %q: %w", name, err)
	}
	if !found {
		return "", false, nil
	}
	c.mu.Lock()
	c.ids[name] = tag.ID
	c.mu.Unlock()
	return tag.ID, true, nil
}

// Forget drops a cached name, used after the tag is destroyed.
func (c *TagCache) Forget(name string) {
	c.mu.Lock()
	delete(c.ids, name)
	c.mu.Unlock()
}
