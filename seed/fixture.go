package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// fixture is one seed file: a batch of documents bound for either a
// problem partition or a content collection.
type fixture struct {
	Partition  string           `json:"partition" yaml:"partition"`
	Collection string           `json:"collection" yaml:"collection"`
	Documents  []map[string]any `json:"documents" yaml:"documents"`

	path string
}

func (f fixture) target() string {
	if f.Partition != "" {
		return "partition " + f.Partition
	}
	return "collection " + f.Collection
}

// loadFixtures reads every .yaml, .yml and .json file in dir, sorted by
// name.
func loadFixtures(dir string) ([]fixture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]fixture, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		f, err := loadFixture(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func loadFixture(path string) (fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	f, err := parseFixture(data, path)
	if err != nil {
		return fixture{}, err
	}
	f.path = path
	return f, nil
}

func parseFixture(data []byte, path string) (fixture, error) {
	var (
		f   fixture
		err error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		f, err = parseJSONFixture(data)
	} else {
		f, err = parseYAMLFixture(data)
	}
	if err != nil {
		return fixture{}, err
	}

	f.Partition = strings.TrimSpace(f.Partition)
	f.Collection = strings.TrimSpace(f.Collection)
	switch {
	case f.Partition == "" && f.Collection == "":
		return fixture{}, errors.New("fixture names neither a partition nor a collection")
	case f.Partition != "" && f.Collection != "":
		return fixture{}, errors.New("fixture names both a partition and a collection")
	}

	for i, doc := range f.Documents {
		f.Documents[i] = stringKeys(doc).(map[string]any)
	}
	return f, nil
}

func parseJSONFixture(data []byte) (fixture, error) {
	var f fixture
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&f); err != nil {
		return fixture{}, fmt.Errorf("parse json: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fixture{}, fmt.Errorf("parse json: multiple documents are not supported")
		}
		return fixture{}, fmt.Errorf("parse json: %w", err)
	}
	return f, nil
}

func parseYAMLFixture(data []byte) (fixture, error) {
	var f fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return fixture{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fixture{}, fmt.Errorf("parse yaml: multiple documents are not supported")
		}
		return fixture{}, fmt.Errorf("parse yaml: %w", err)
	}
	return f, nil
}

// stringKeys rewrites YAML maps with non-string keys so the document can be
// encoded as JSON.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}
