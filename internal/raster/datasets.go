package raster

// Datasets maps dataset names to arrays and remembers insertion order, which
// is the order datasets are laid out in a written container.
type Datasets struct {
	names  []string
	arrays map[string]Array
}

// NewDatasets returns an empty set.
func NewDatasets() *Datasets {
	return &Datasets{arrays: make(map[string]Array)}
}

// Set adds or replaces a dataset. Replacing keeps the original position.
func (d *Datasets) Set(name string, a Array) {
	if _, ok := d.arrays[name]; !ok {
		d.names = append(d.names, name)
	}
	d.arrays[name] = a
}

// Get returns the named dataset.
func (d *Datasets) Get(name string) (Array, bool) {
	a, ok := d.arrays[name]
	return a, ok
}

// Names returns dataset names in insertion order.
func (d *Datasets) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Len returns the number of datasets.
func (d *Datasets) Len() int { return len(d.names) }
