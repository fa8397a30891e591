// Package jsonutil decodes loosely typed values found in exported documents.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling
// exporters that write numbers or booleans where a string is expected (an
// artist named 808, for example). Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Integers are copied verbatim so large values keep their precision.
	text := strings.TrimSpace(string(raw))
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return text
	}

	// Try number
	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return strconv.FormatInt(int64(numVal), 10)
		}
		return strconv.FormatFloat(numVal, 'g', -1, 64)
	}

	// Try boolean
	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// OptionalInt64 parses a nullable integer written either as a JSON number or
// as a numeric string. null, "" and an empty message yield nil.
func OptionalInt64(raw json.RawMessage) (*int64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, nil
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		text = strings.TrimSpace(strVal)
		if text == "" {
			return nil, nil
		}
	}

	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// Integral floats such as 1990.0 are accepted.
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || f != float64(int64(f)) {
			return nil, fmt.Errorf("invalid integer %s", raw)
		}
		v = int64(f)
	}
	return &v, nil
}
