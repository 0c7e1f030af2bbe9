package predicate

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fedups/funnelsort/keycodec"
)

// Cache memoizes compiled equations and translated date layouts by
// their source string, so a WHERE/STOP/format string reused across
// many FunnelContext instances in one process is parsed once. Grounded
// on adammck-blobby's use of github.com/hashicorp/golang-lru/v2.
type Cache struct {
	equations *lru.Cache[string, Evaluator]
	layouts   *lru.Cache[string, string]
	compiler  Compiler
}

// NewCache creates a Cache backed by an LRU of the given size for each
// of its two memoization tables.
func NewCache(compiler Compiler, size int) (*Cache, error) {
	if size <= 0 {
		size = 128
	}
	eqs, err := lru.New[string, Evaluator](size)
	if err != nil {
		return nil, err
	}
	layouts, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cache{equations: eqs, layouts: layouts, compiler: compiler}, nil
}

// Compile returns a cached Evaluator for source, compiling and caching
// it on first use.
func (c *Cache) Compile(source string) (Evaluator, error) {
	if eq, ok := c.equations.Get(source); ok {
		return eq, nil
	}
	eq, err := c.compiler.Compile(source)
	if err != nil {
		return nil, &Error{Source: source, Err: err}
	}
	c.equations.Add(source, eq)
	return eq, nil
}

// Layout returns the Go reference-time layout for a SimpleDateFormat-
// style pattern, translating and caching it on first use.
func (c *Cache) Layout(javaLayout string) string {
	if layout, ok := c.layouts.Get(javaLayout); ok {
		return layout
	}
	layout := keycodec.TranslateLayout(javaLayout)
	c.layouts.Add(javaLayout, layout)
	return layout
}
