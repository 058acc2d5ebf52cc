package question

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
)

// ErrUnknownDataset is returned for a dataset name that is not bundled.
var ErrUnknownDataset = errors.New("unknown dataset")

// Dataset names a bundled CSV file.
type Dataset struct {
	Name string `json:"name"`
	File string `json:"-"`
}

// Catalog serves the bundled datasets. Parsed pools are cached read-only and
// every caller receives its own copy.
type Catalog struct {
	fsys     fs.FS
	datasets []Dataset
	opts     LoadOptions

	mu    sync.Mutex
	pools map[string]Pool
}

// NewCatalog builds a catalog over fsys.
func NewCatalog(fsys fs.FS, datasets []Dataset, opts LoadOptions) *Catalog {
	return &Catalog{
		fsys:     fsys,
		datasets: datasets,
		opts:     opts,
		pools:    make(map[string]Pool, len(datasets)),
	}
}

// Datasets lists the bundled datasets in configured order.
func (c *Catalog) Datasets() []Dataset {
	out := make([]Dataset, len(c.datasets))
	copy(out, c.datasets)
	return out
}

// Pool returns a private copy of the named dataset, parsing it on first use.
func (c *Catalog) Pool(name string) (Pool, error) {
	var ds *Dataset
	for i := range c.datasets {
		if c.datasets[i].Name == name {
			ds = &c.datasets[i]
			break
		}
	}
	if ds == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pools[name]; ok {
		return p.Clone(), nil
	}

	f, err := c.fsys.Open(ds.File)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", name, err)
	}
	defer f.Close()

	opts := c.opts
	if opts.DefaultField == "" {
		opts.DefaultField = name
	}
	p, err := Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", name, err)
	}
	c.pools[name] = p
	return p.Clone(), nil
}
