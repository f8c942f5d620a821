package registry

import "github.com/aevon-lab/aggindex/internal/core/measure"

// DefaultTypes are registered for every instance unless a type file
// redeclares them.
func DefaultTypes() map[string]TypeSpec {
	enabled := true
	disabled := false
	return map[string]TypeSpec{
		"searchQuery": {
			Index:             "search_query",
			ID:                "key",
			Weight:            "count",
			TokenIndexEnabled: &disabled,
			Measures:          []measure.Spec{{Type: measure.TypeSum, Field: "count"}},
			Mapping: map[string]interface{}{
				"key":          "$IdentityText",
				"query":        "$Text",
				"unicodeQuery": "$Text",
				"count":        "$Long",
				"hasResults":   "$Boolean",
			},
		},
		"intent": {
			Index:             "metadata",
			TokenIndexEnabled: &enabled,
			Mapping: map[string]interface{}{
				"id":          "$IdentityText",
				"name":        "$Keyword",
				"category":    "$FacetKeyword",
				"description": "$DescriptiveText",
			},
		},
		"keyword": {
			Index:             "metadata",
			TokenIndexEnabled: &enabled,
			Mapping: map[string]interface{}{
				"id":    "$IdentityText",
				"key":   "$IdentityText",
				"value": "$Keyword",
			},
		},
		"stopWord": {
			Index:             "metadata",
			TokenIndexEnabled: &enabled,
			Mapping: map[string]interface{}{
				"id":    "$IdentityText",
				"value": "$IdentityText",
			},
		},
	}
}
