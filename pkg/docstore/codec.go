package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// FormatFromName picks the format from a file extension.
func FormatFromName(name string) (string, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
}

// FileName encodes a collection path as a flat file name.
func FileName(collection string) string {
	return strings.ReplaceAll(collection, "/", "__") + ".json"
}

// CollectionFromFile reverses FileName. ok is false for non-JSON files.
func CollectionFromFile(name string) (string, bool) {
	base := path.Base(name)
	if !strings.HasSuffix(base, ".json") {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimSuffix(base, ".json"), "__", "/"), true
}

// DecodeRecords parses a JSON array or YAML sequence of objects.
func DecodeRecords(data []byte, format string) ([]map[string]interface{}, error) {
	var raw []interface{}
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}

	records := make([]map[string]interface{}, 0, len(raw))
	for i, item := range raw {
		m, ok := normalize(item).(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item %d is not an object", i)
		}
		records = append(records, m)
	}
	return records, nil
}

// SplitID moves the "id" field of a record out into Document.ID.
func SplitID(record map[string]interface{}) (Document, bool) {
	id, _ := AsString(record["id"])
	if id == "" {
		return Document{}, false
	}
	data := make(map[string]interface{}, len(record))
	for k, v := range record {
		if k != "id" {
			data[k] = v
		}
	}
	return Document{ID: id, Data: data}, true
}

// EncodeDocuments renders documents as an indented JSON array with the
// document id inlined as "id".
func EncodeDocuments(docs []Document) ([]byte, error) {
	out := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		rec := make(map[string]interface{}, len(d.Data)+1)
		for k, v := range d.Data {
			rec[k] = Plain(v)
		}
		rec["id"] = d.ID
		out[i] = rec
	}
	return json.MarshalIndent(out, "", "  ")
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case int:
		return int64(t)
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []interface{}:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	}
	return v
}
