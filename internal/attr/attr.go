// Package attr holds the per-file metadata carried alongside raster datasets.
package attr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Grid-geometry and reference-pixel keys.
const (
	Length   = "LENGTH"
	Width    = "WIDTH"
	YFirst   = "Y_FIRST"
	XFirst   = "X_FIRST"
	YStep    = "Y_STEP"
	XStep    = "X_STEP"
	YUnit    = "Y_UNIT"
	XUnit    = "X_UNIT"
	RefY     = "REF_Y"
	RefX     = "REF_X"
	RefLat   = "REF_LAT"
	RefLon   = "REF_LON"
	FileType = "FILE_TYPE"
)

// Map is an insertion-ordered string-to-string metadata map.
// Overwriting an existing key keeps its original position.
type Map struct {
	keys []string
	vals map[string]string
}

// New returns an empty map.
func New() *Map {
	return &Map{vals: make(map[string]string)}
}

// FromPairs builds a map from alternating key, value arguments.
func FromPairs(kv ...string) *Map {
	m := New()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// Len returns the number of keys.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.vals[key]
	return ok
}

// Get returns the value for key.
func (m *Map) Get(key string) (string, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Set inserts or overwrites key.
func (m *Map) Set(key, value string) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
}

// SetInt stores an integer value.
func (m *Map) SetInt(key string, v int) {
	m.Set(key, strconv.Itoa(v))
}

// SetFloat stores a float using the shortest representation that round-trips.
func (m *Map) SetFloat(key string, v float64) {
	m.Set(key, FormatFloat(v))
}

// Remove deletes every listed key that is present. Missing keys are ignored,
// so repeated calls are idempotent.
func (m *Map) Remove(keys ...string) {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := m.vals[k]; ok {
			drop[k] = true
			delete(m.vals, k)
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := m.keys[:0]
	for _, k := range m.keys {
		if !drop[k] {
			kept = append(kept, k)
		}
	}
	m.keys = kept
}

// Clone returns an independent copy.
func (m *Map) Clone() *Map {
	c := &Map{
		keys: make([]string, len(m.keys)),
		vals: make(map[string]string, len(m.vals)),
	}
	copy(c.keys, m.keys)
	for k, v := range m.vals {
		c.vals[k] = v
	}
	return c
}

// Equal reports whether both maps hold the same keys, values and order.
func (m *Map) Equal(o *Map) bool {
	if len(m.keys) != len(o.keys) {
		return false
	}
	for i, k := range m.keys {
		if o.keys[i] != k || o.vals[k] != m.vals[k] {
			return false
		}
	}
	return true
}

// Float parses the value of key as a float64.
func (m *Map) Float(key string) (float64, error) {
	v, ok := m.vals[key]
	if !ok {
		return 0, fmt.Errorf("attribute %s: missing", key)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", key, err)
	}
	return f, nil
}

// Int parses the value of key as an integer. Values written as floats
// ("120.0") are accepted when they are integral.
func (m *Map) Int(key string) (int, error) {
	v, ok := m.vals[key]
	if !ok {
		return 0, fmt.Errorf("attribute %s: missing", key)
	}
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("attribute %s: not an integer: %q", key, v)
	}
	return int(f), nil
}

// FormatFloat renders v the way attribute values are stored.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// MarshalJSON encodes the map as an array of [key, value] pairs so that
// ordering survives the round trip.
func (m *Map) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, len(m.keys))
	for i, k := range m.keys {
		pairs[i] = [2]string{k, m.vals[k]}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes the pair encoding produced by MarshalJSON.
func (m *Map) UnmarshalJSON(data []byte) error {
	var pairs [][2]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	m.keys = nil
	m.vals = make(map[string]string, len(pairs))
	for _, p := range pairs {
		m.Set(p[0], p[1])
	}
	return nil
}
