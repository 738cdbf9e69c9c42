// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"context"
	"sync"
)

// WithContext returns a new context with the provided logger.
func WithContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey, logger)
}

// FromContext retrieves the logger from the context. If no logger is found, a new null logger is returned.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey).(Logger); ok {
			return logger
		}
	}

	return nullLogger
}

// AddRequestFields attaches key/value pairs to the completion line of the request served with ctx.
// Outside a logged request it does nothing.
func AddRequestFields(ctx context.Context, args ...interface{}) {
	if ctx == nil {
		return
	}
	if fields, ok := ctx.Value(requestFieldsKey).(*requestFields); ok {
		fields.add(args...)
	}
}

type requestFields struct {
	lock sync.Mutex
	args []interface{}
}

func (f *requestFields) add(args ...interface{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.args = append(f.args, args...)
}

func (f *requestFields) list() []interface{} {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]interface{}(nil), f.args...)
}

func withRequestFields(ctx context.Context) (context.Context, *requestFields) {
	fields := new(requestFields)
	return context.WithValue(ctx, requestFieldsKey, fields), fields
}

// Unexported new types so that our context keys never collide with another.
type contextKeyType struct{}
type requestFieldsKeyType struct{}

var (
	// contextKey is the key used for the context to store the logger.
	contextKey = contextKeyType{}
	// requestFieldsKey stores the fields added to the request completed line.
	requestFieldsKey = requestFieldsKeyType{}
)
