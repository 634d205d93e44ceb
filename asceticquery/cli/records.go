package cli

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// DetectFormat picks the format from a file name; JSON unless it ends in
// .yaml or .yml.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(raw)); f {
	case JSON, YAML:
		return f, nil
	}
	return "", errors.Errorf("unknown format %q", raw)
}

// LoadRecords decodes a document holding an array of records. JSON numbers
// become float64, YAML integers int.
func LoadRecords(r io.Reader, format Format) ([]any, error) {
	var records []any
	var err error
	switch format {
	case YAML:
		err = yaml.NewDecoder(r).Decode(&records)
	case JSON:
		err = json.NewDecoder(r).Decode(&records)
	default:
		return nil, errors.Errorf("unknown format %q", format)
	}
	if errors.Is(err, io.EOF) {
		return []any{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s records", format)
	}
	if records == nil {
		records = []any{}
	}
	return records, nil
}

func Encode(w io.Writer, values []any, format Format) error {
	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(values); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(values), "encode json")
	}
	return errors.Errorf("unknown format %q", format)
}
