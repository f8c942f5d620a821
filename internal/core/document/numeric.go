package document

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// Decimal converts a decoded JSON/msgpack scalar into a decimal.
// Returns decimal.Zero for missing, empty, non-finite or non-numeric values.
// JSON numbers unmarshal to float64; msgpack may hand back any integer width.
func Decimal(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(Finite(val))
	case float32:
		return decimal.NewFromFloat(Finite(float64(val)))
	case int:
		return decimal.NewFromInt(int64(val))
	case int8:
		return decimal.NewFromInt(int64(val))
	case int16:
		return decimal.NewFromInt(int64(val))
	case int32:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case uint:
		return decimal.NewFromInt(int64(val))
	case uint8:
		return decimal.NewFromInt(int64(val))
	case uint16:
		return decimal.NewFromInt(int64(val))
	case uint32:
		return decimal.NewFromInt(int64(val))
	case uint64:
		return decimal.NewFromUint64(val)
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err == nil {
			return d
		}
	case string:
		d, err := decimal.NewFromString(val)
		if err == nil {
			return d
		}
	case decimal.Decimal:
		return val
	}
	return decimal.Zero
}

// Finite maps NaN and ±Inf to 0.
func Finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Normalize replaces json.Number values at any depth with int64 when the
// number is integral and fits, float64 otherwise. Numbers beyond float64
// range stay json.Number. Maps and slices are rewritten in place.
func Normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
	case Document:
		for k, item := range val {
			val[k] = Normalize(item)
		}
	case map[string]interface{}:
		for k, item := range val {
			val[k] = Normalize(item)
		}
	case []interface{}:
		for i, item := range val {
			val[i] = Normalize(item)
		}
	}
	return v
}

// IsNumber reports whether v is a numeric scalar Decimal understands.
func IsNumber(v interface{}) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number, decimal.Decimal:
		return true
	}
	return false
}

// ExtractDecimal pulls a numeric value from a document by dot path.
func ExtractDecimal(d Document, path string) decimal.Decimal {
	if path == "" {
		return decimal.Zero
	}
	v, ok := d.Get(path)
	if !ok {
		return decimal.Zero
	}
	return Decimal(v)
}

// Float is ExtractDecimal narrowed to float64.
func Float(d Document, path string) float64 {
	return ExtractDecimal(d, path).InexactFloat64()
}

// Int64 converts a decoded scalar into an int64, truncating fractions.
func Int64(v interface{}) int64 {
	return Decimal(v).IntPart()
}
