// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// member is a JSON object entry kept in document order.
type member struct {
	name  string
	value json.RawMessage
}

// kind returns the JSON type of raw looking at its first significant byte.
func kind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// orderedMembers decodes a JSON object or array preserving the declaration order of its entries.
// Array entries are named after their index. A repeated object key keeps its first position
// and its last value.
func orderedMembers(raw json.RawMessage) ([]member, error) {
	switch kind(raw) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		members := make([]member, 0, len(items))
		for i, item := range items {
			members = append(members, member{name: strconv.Itoa(i), value: item})
		}
		return members, nil
	case '{':
	default:
		return nil, errors.New("not a JSON object")
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	if _, err := decoder.Token(); err != nil {
		return nil, err
	}

	members := make([]member, 0)
	positions := make(map[string]int)
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		name, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", token)
		}

		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return nil, err
		}

		if position, seen := positions[name]; seen {
			members[position].value = value
			continue
		}
		positions[name] = len(members)
		members = append(members, member{name: name, value: value})
	}

	if _, err := decoder.Token(); err != nil {
		return nil, err
	}
	return members, nil
}

// decodeInt reads an integral JSON number. When lenient is true numeric strings are accepted too.
func decodeInt(raw json.RawMessage, lenient bool) (int, error) {
	var number json.Number
	switch kind(raw) {
	case '"':
		if !lenient {
			return 0, errors.New("must be an integer")
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		number = json.Number(strings.TrimSpace(text))
	default:
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		if err := decoder.Decode(&number); err != nil {
			return 0, errors.New("must be an integer")
		}
	}

	if value, err := strconv.Atoi(number.String()); err == nil {
		return value, nil
	}

	if !lenient {
		return 0, errors.New("must be an integer")
	}

	value, err := number.Float64()
	if err != nil || value != math.Trunc(value) || math.Abs(value) > math.MaxInt32 {
		return 0, errors.New("must be an integer")
	}
	return int(value), nil
}

// decodeString reads a JSON string.
func decodeString(raw json.RawMessage) (string, error) {
	if kind(raw) != '"' {
		return "", errors.New("must be a string")
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", err
	}
	return value, nil
}
