package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

// TemplatePrefix is the key prefix of geocoding options in a template file.
const TemplatePrefix = "pysar.geocode."

// Template field names, appended to TemplatePrefix.
const (
	FieldSNWE         = "SNWE"
	FieldLatStep      = "latStep"
	FieldLonStep      = "lonStep"
	FieldInterpMethod = "interpMethod"
	FieldFillValue    = "fillValue"
)

// Template holds flattened template keys and their raw string values.
type Template map[string]string

// LoadTemplate reads a template file. YAML (.yaml, .yml) and TOML (.toml)
// documents are flattened into dotted keys; every other file is read as
// "key = value  # comment" lines.
func LoadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}

	var t Template
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		t, err = parseYAML(data)
	case ".toml":
		t, err = parseTOML(data)
	default:
		t, err = ParseTemplate(strings.NewReader(string(data)))
	}
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return t, nil
}

// ParseTemplate parses "key = value" lines. Blank lines and lines starting
// with '#' are skipped, trailing "# ..." comments and surrounding quotes are
// stripped from values.
func ParseTemplate(r io.Reader) (Template, error) {
	t := make(Template)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			// Section headers such as "template:" carry no value.
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", lineNo)
		}
		if i := strings.Index(value, "#"); i >= 0 {
			value = value[:i]
		}
		t[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseYAML(data []byte) (Template, error) {
	var doc map[interface{}]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	t := make(Template)
	for k, v := range doc {
		flatten(t, fmt.Sprint(k), v)
	}
	return t, nil
}

func parseTOML(data []byte) (Template, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	t := make(Template)
	for k, v := range doc {
		flatten(t, k, v)
	}
	return t, nil
}

// flatten stores v under key, descending into nested maps with dotted keys.
// Lists are joined with commas so they read like their text-template form.
func flatten(t Template, key string, v interface{}) {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		for k, sub := range val {
			flatten(t, key+"."+fmt.Sprint(k), sub)
		}
	case map[string]interface{}:
		for k, sub := range val {
			flatten(t, key+"."+k, sub)
		}
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprint(item)
		}
		t[key] = strings.Join(parts, ",")
	case nil:
		t[key] = ""
	default:
		t[key] = fmt.Sprint(val)
	}
}

// Value returns the geocoding option field, trimmed. Missing keys, empty
// values and the placeholders "auto", "no" and "none" are reported as unset.
func (t Template) Value(field string) (string, bool) {
	v, ok := t[TemplatePrefix+field]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "auto", "no", "none":
		return "", false
	}
	return v, true
}
