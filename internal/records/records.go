// Package records loads input records from files. JSON, YAML, and TOML are
// accepted; the format is chosen by file extension.
package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/treeline-dev/treeline/internal/types"
)

// Load reads a record file. JSON and YAML files hold a top-level list of
// records (or a {"records": [...]} document); TOML uses an [[records]]
// array of tables.
func Load(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path) // #nosec G304 - user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	case ".toml":
		return parseTOML(data)
	default:
		return nil, fmt.Errorf("unsupported records format %q (want .json, .yaml, or .toml)", filepath.Ext(path))
	}
}

// document is the wrapped form: a file may nest the list under "records".
type document struct {
	Records []types.Record `json:"records" yaml:"records" toml:"records"`
}

func parseJSON(data []byte) ([]types.Record, error) {
	var list []types.Record
	if err := json.Unmarshal(data, &list); err == nil {
		return validate(list)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse JSON records: %w", err)
	}
	return validate(doc.Records)
}

func parseYAML(data []byte) ([]types.Record, error) {
	var list []types.Record
	if err := yaml.Unmarshal(data, &list); err == nil {
		return validate(list)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML records: %w", err)
	}
	return validate(doc.Records)
}

func parseTOML(data []byte) ([]types.Record, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse TOML records: %w", err)
	}
	return validate(doc.Records)
}

func validate(list []types.Record) ([]types.Record, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("records file contains no records")
	}
	for i, rec := range list {
		if rec == nil {
			return nil, fmt.Errorf("record %d is empty", i)
		}
	}
	return list, nil
}
