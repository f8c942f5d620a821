package registry

import (
	"fmt"
	"strings"

	"github.com/aevon-lab/aggindex/internal/core/document"
)

func identityText() map[string]interface{} { return map[string]interface{}{"type": "keyword"} }

func notIndexed(t string) map[string]interface{} {
	return map[string]interface{}{"type": t, "index": false}
}

// Presets are the named mapping shorthands a type mapping may reference,
// e.g. `key: $IdentityText`.
var Presets = map[string]func() map[string]interface{}{
	"$Keyword": func() map[string]interface{} {
		return map[string]interface{}{"type": "text", "analyzer": "humane_keyword_analyzer"}
	},
	"$FacetKeyword": func() map[string]interface{} {
		return map[string]interface{}{"type": "text", "analyzer": "humane_keyword_analyzer", "fielddata": true}
	},
	"$VernacularKeyword": func() map[string]interface{} {
		return map[string]interface{}{"type": "keyword", "analyzer": "humane_keyword_analyzer"}
	},
	"$Integer":           func() map[string]interface{} { return map[string]interface{}{"type": "integer"} },
	"$NotIndexedInteger": func() map[string]interface{} { return notIndexed("integer") },
	"$Short":             func() map[string]interface{} { return map[string]interface{}{"type": "short"} },
	"$NotIndexedShort":   func() map[string]interface{} { return notIndexed("short") },
	"$Long":              func() map[string]interface{} { return map[string]interface{}{"type": "long"} },
	"$NotIndexedLong":    func() map[string]interface{} { return notIndexed("long") },
	"$Double":            func() map[string]interface{} { return map[string]interface{}{"type": "double"} },
	"$NotIndexedDouble":  func() map[string]interface{} { return notIndexed("double") },
	"$Boolean":           func() map[string]interface{} { return map[string]interface{}{"type": "boolean"} },
	"$NotIndexedBoolean": func() map[string]interface{} { return notIndexed("boolean") },
	"$Date": func() map[string]interface{} {
		return map[string]interface{}{
			"type":   "date",
			"format": "yyyy-MM-dd HH:mm:ss||epoch_millis||yyyy-MM-dd'T'HH:mm:ss.SSS'Z'",
		}
	},
	"$NotIndexedText": func() map[string]interface{} { return notIndexed("keyword") },
	"$IdentityText":   identityText,
	"$Text": func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "text",
			"analyzer": "humane_standard_analyzer",
			"fields": map[string]interface{}{
				"raw":     identityText(),
				"humane":  map[string]interface{}{"type": "text", "analyzer": "humane_text_analyzer"},
				"shingle": map[string]interface{}{"type": "text", "analyzer": "humane_shingle_text_analyzer"},
			},
		}
	},
	"$DescriptiveText": func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "text",
			"analyzer": "humane_standard_analyzer",
			"fields": map[string]interface{}{
				"humane":  map[string]interface{}{"type": "text", "analyzer": "humane_descriptive_text_analyzer"},
				"shingle": map[string]interface{}{"type": "text", "analyzer": "humane_shingle_text_analyzer"},
			},
		}
	},
	"$VernacularText": func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "text",
			"analyzer": "humane_standard_analyzer",
			"fields": map[string]interface{}{
				"raw":        identityText(),
				"humane":     map[string]interface{}{"type": "text", "analyzer": "humane_text_analyzer"},
				"shingle":    map[string]interface{}{"type": "text", "analyzer": "humane_shingle_text_analyzer"},
				"vernacular": map[string]interface{}{"type": "text", "analyzer": "humane_vernacular_analyzer"},
			},
		}
	},
	"$Geo": func() map[string]interface{} { return map[string]interface{}{"type": "geo_point"} },
}

const (
	langMapping   = "$Keyword"
	weightMapping = "$Double"
)

// resolveMapping expands preset references recursively.
func resolveMapping(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			preset, ok := Presets[val]
			if !ok {
				return nil, fmt.Errorf("unknown mapping preset %q", val)
			}
			return preset(), nil
		}
		return map[string]interface{}{"type": val}, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			switch k {
			case "properties", "fields":
				nested, ok := item.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("mapping %s must be an object", k)
				}
				resolved := make(map[string]interface{}, len(nested))
				for name, prop := range nested {
					r, err := resolveMapping(prop)
					if err != nil {
						return nil, fmt.Errorf("%s: %w", name, err)
					}
					resolved[name] = r
				}
				out[k] = resolved
			default:
				out[k] = document.DeepCopy(item)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported mapping value %T", v)
}

// resolveProperties turns a type's mapping into store properties, adding
// the derived _weight and _lang fields when absent.
func resolveProperties(mapping map[string]interface{}) (map[string]interface{}, error) {
	props := make(map[string]interface{}, len(mapping)+2)
	for name, v := range mapping {
		r, err := resolveMapping(v)
		if err != nil {
			return nil, fmt.Errorf("mapping %q: %w", name, err)
		}
		props[name] = r
	}
	if _, ok := props["_weight"]; !ok {
		props["_weight"] = Presets[weightMapping]()
	}
	if _, ok := props["_lang"]; !ok {
		props["_lang"] = Presets[langMapping]()
	}
	return props, nil
}

// statsDynamicTemplates maps every _*Stats group written by signal rollups.
func statsDynamicTemplates() []interface{} {
	long := Presets["$Long"]
	return []interface{}{
		map[string]interface{}{
			"statsGroup": map[string]interface{}{
				"match_mapping_type": "object",
				"match":              "_*Stats",
				"mapping":            map[string]interface{}{"type": "object"},
			},
		},
		map[string]interface{}{
			"stats": map[string]interface{}{
				"match_mapping_type": "object",
				"path_match":         "_*Stats.*",
				"mapping": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"value":          long(),
						"timeInUnit":     long(),
						"lastUpdateTime": Presets["$Date"](),
						"lastNStats": map[string]interface{}{
							"type": "nested",
							"properties": map[string]interface{}{
								"value":      long(),
								"timeInUnit": long(),
							},
						},
					},
				},
			},
		},
	}
}

// snakeCase lowercases and joins words with underscores, splitting on
// separators and camel-case boundaries ("searchQuery" -> "search_query").
func snakeCase(s string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !isAlnum(r):
			flush()
		case isUpper(r) && len(cur) > 0 && (!isUpper(runes[i-1]) || (i+1 < len(runes) && isLower(runes[i+1]))):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return strings.Join(words, "_")
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isAlnum(r rune) bool { return isUpper(r) || isLower(r) || (r >= '0' && r <= '9') }

// StoreName derives the physical store for a logical index name.
func StoreName(instance, index string) string {
	if index == "" {
		return strings.ToLower(instance) + "_store"
	}
	return fmt.Sprintf("%s:%s_store", strings.ToLower(instance), snakeCase(index))
}
