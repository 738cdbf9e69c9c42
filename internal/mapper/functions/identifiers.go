// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package functions

import (
	"regexp"
	"strings"
)

const (
	upcMaxLength = 13
)

var (
	asinPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)
)

// ValidateASIN upper-cases and trims value and returns it only when it is made of exactly
// ten ASCII letters or digits. Any other input returns nil.
func ValidateASIN(value any) any {
	asin := strings.ToUpper(TrimSpace(value))
	if !asinPattern.MatchString(asin) {
		return nil
	}
	return asin
}

// CleanUPC strips value down to letters, digits and dots and keeps the first 13 characters.
func CleanUPC(value any) string {
	return Truncate(upcMaxLength, CleanString(value))
}
