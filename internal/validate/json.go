package validate

import (
	"encoding/json"

	"github.com/starford/kbclaude/internal/models"
)

var itemLabels = map[string]string{
	"entries":   "Entry",
	"questions": "Question",
	"changes":   "Change",
}

// sniffOrder maps a key found next to "component" to the entry type it
// implies. Only used when an entry carries no "$schema".
var sniffOrder = []struct {
	key string
	typ models.DocType
}{
	{"entries", models.TypeDebugHistory},
	{"questions", models.TypeQA},
	{"summary", models.TypeMetadata},
	{"patterns", models.TypePatterns},
	{"files", models.TypeCodeIndex},
	{"changes", models.TypeDelta},
}

// Route picks the entry type of a legacy JSON object: the "$schema" URL when
// present, otherwise key sniffing. ok is false when nothing matches.
func Route(obj map[string]any) (models.TypeInfo, bool) {
	if schema, isStr := obj["$schema"].(string); isStr {
		return models.FromSchema(schema)
	}
	if _, has := obj["$schema"]; has {
		return models.TypeInfo{}, false
	}
	if _, has := obj["component"]; !has {
		return models.TypeInfo{}, false
	}
	for _, s := range sniffOrder {
		if _, has := obj[s.key]; has {
			return models.Lookup(s.typ)
		}
	}
	return models.TypeInfo{}, false
}

// JSON checks a legacy JSON entry. Entries whose type cannot be determined
// are accepted as-is.
func JSON(p string, data []byte) []Finding {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return []Finding{errorf(p, "failed to parse JSON: %v", err)}
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return []Finding{errorf(p, "root element must be a JSON object")}
	}
	ti, ok := Route(obj)
	if !ok {
		return nil
	}

	var out []Finding
	for _, field := range ti.Required {
		if _, has := obj[field]; !has {
			out = append(out, errorf(p, "missing required field: %s", field))
		}
	}
	if ti.ItemsKey == "" {
		return out
	}
	items, _ := obj[ti.ItemsKey].([]any)
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range ti.ItemRequired {
			if _, has := rec[field]; !has {
				out = append(out, errorf(p, "%s %d: missing required field: %s", itemLabels[ti.ItemsKey], i, field))
			}
		}
	}
	return out
}
