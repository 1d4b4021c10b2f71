// Package notify renders short notification messages, such as "your feedback
// is ready", from Jinja-style templates.
package notify

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"

	"studyfeedback/internal/errors"
)

// Cache holds compiled templates keyed by their source text. It is bounded by
// entry count and each entry expires ttl after it was compiled. A zero ttl
// keeps entries until they are evicted.
type Cache struct {
	entries *lru.Cache
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	template *exec.Template
	expires  time.Time
}

// NewCache creates a cache holding at most size compiled templates
func NewCache(size int, ttl time.Duration) (*Cache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "create template cache")
	}
	return &Cache{entries: entries, ttl: ttl, now: time.Now}, nil
}

// Get returns the compiled template for source, compiling it on a miss
func (c *Cache) Get(source string) (*exec.Template, error) {
	if v, ok := c.entries.Get(source); ok {
		entry := v.(cacheEntry)
		if c.ttl == 0 || c.now().Before(entry.expires) {
			return entry.template, nil
		}
		c.entries.Remove(source)
	}

	tpl, err := gonja.FromString(source)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	c.entries.Add(source, cacheEntry{template: tpl, expires: c.now().Add(c.ttl)})
	return tpl, nil
}

// Len reports how many templates are cached, expired ones included
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached template
func (c *Cache) Purge() {
	c.entries.Purge()
}
