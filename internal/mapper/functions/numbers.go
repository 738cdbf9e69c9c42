// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package functions

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonDigits       = regexp.MustCompile(`[^0-9]`)
	nonDecimalChars = regexp.MustCompile(`[^0-9.]`)
	leadingDecimal  = regexp.MustCompile(`^[0-9]*(\.[0-9]*)?`)
)

// CleanFloat parses a price-like value.
// Commas are treated as decimal separators, everything but digits and dots is dropped and the
// longest leading decimal number is parsed. Unparseable values yield 0.
func CleanFloat(value any) float64 {
	cleaned := strings.ReplaceAll(CastToString(value), ",", ".")
	cleaned = nonDecimalChars.ReplaceAllString(CleanString(cleaned), "")

	number := leadingDecimal.FindString(cleaned)
	if number == "" || number == "." {
		return 0
	}

	parsed, err := strconv.ParseFloat(strings.TrimSuffix(number, "."), 64)
	if err != nil {
		return 0
	}
	return parsed
}

// CleanInteger keeps only the digits of value and parses them as an integer.
// Unparseable or overflowing values yield 0.
func CleanInteger(value any) int {
	digits := nonDigits.ReplaceAllString(CastToString(value), "")
	if digits == "" {
		return 0
	}

	parsed, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return parsed
}
