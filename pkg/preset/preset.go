// Package preset reads and writes answer files that feed the override map,
// so a generation can be replayed without prompting.
package preset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/starterkit/starter/internal/utils"
	"github.com/starterkit/starter/pkg/metadata"
)

// Format is the encoding of a preset file.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported preset extension %q (use .toml, .yaml or .yml)", filepath.Ext(path))
	}
}

// Load reads a flat table of step names to values. Lists are joined with ","
// and scalars are formatted as strings.
func Load(path string) (map[string]string, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}
	return Decode(data, format)
}

// Decode parses a preset document.
func Decode(data []byte, format Format) (map[string]string, error) {
	raw := map[string]any{}
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("invalid TOML preset: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML preset: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown preset format %q", format)
	}

	return Flatten(raw)
}

// Flatten turns a decoded table into step values, as Load does.
func Flatten(raw map[string]any) (map[string]string, error) {
	values := make(map[string]string, len(raw))
	for key, v := range raw {
		s, err := flatten(v)
		if err != nil {
			return nil, fmt.Errorf("preset key %q: %w", key, err)
		}
		values[key] = s
	}
	return values, nil
}

func flatten(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []string:
		return strings.Join(t, ","), nil
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			s, err := flatten(e)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case map[string]any:
		return "", fmt.Errorf("nested tables are not supported")
	default:
		return fmt.Sprint(t), nil
	}
}

// Save writes the non-empty answers to path. Multi-select answers are stored
// as lists.
func Save(path string, responses []metadata.ResponseStep) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(responses, format)
	if err != nil {
		return err
	}
	if err := utils.WriteFile(path, data); err != nil {
		return fmt.Errorf("failed to write preset: %w", err)
	}
	return nil
}

// Encode renders the non-empty answers in format. Both encoders sort keys.
func Encode(responses []metadata.ResponseStep, format Format) ([]byte, error) {
	doc := make(map[string]any, len(responses))
	for _, r := range responses {
		if r.Response == "" {
			continue
		}
		if _, multi := r.Step.Kind.(metadata.MultiSelect); multi {
			doc[r.Name()] = strings.Split(r.Response, ",")
			continue
		}
		doc[r.Name()] = r.Response
	}

	var buf bytes.Buffer
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode preset: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode preset: %w", err)
		}
		_ = enc.Close()
	default:
		return nil, fmt.Errorf("unknown preset format %q", format)
	}
	return buf.Bytes(), nil
}
