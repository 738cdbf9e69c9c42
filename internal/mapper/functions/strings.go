// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package functions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// nonIdentifierChars matches everything but letters of any script, ASCII digits and dots.
	nonIdentifierChars = regexp.MustCompile(`[^\p{L}0-9.]`)
)

// CastToString converts a raw cell value to its textual form.
// Null values become the empty string and floating point numbers are printed without exponent.
func CastToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		if v {
			return "1"
		}
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CleanString removes every character that is not a letter, a digit or a dot.
// The input is composed to NFC first so accented letters survive as a single rune.
func CleanString(value any) string {
	return nonIdentifierChars.ReplaceAllString(norm.NFC.String(CastToString(value)), "")
}

// Truncate keeps at most length characters of s.
// A negative length keeps the suffix, and values outside the string bounds leave s unchanged.
func Truncate(length int, s string) string {
	runes := []rune(s)
	if length < 0 && len(runes)+length > 0 {
		return string(runes[len(runes)+length:])
	}

	if length >= 0 && len(runes) > length {
		return string(runes[:length])
	}

	return s
}

// TrimSpace removes all leading and trailing whitespace from the textual form of value.
func TrimSpace(value any) string {
	return strings.TrimSpace(CastToString(value))
}
