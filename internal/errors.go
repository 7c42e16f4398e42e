// SPDX-License-Identifier: Apache-2.0
/*
 * snug: a content-addressable archive engine for file-system trees
 * Copyright (C) 2026 snug authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package internal holds the error taxonomy shared by every snug package.
package internal

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the dispositions from the error
// handling design: some kinds are retried by a specific layer, some are
// always surfaced, some are swallowed into a warning depending on caller
// options.
type Kind int

// Error kinds. See the error handling design for the disposition of each.
const (
	KindUnknown Kind = iota
	KindIO
	KindNotFound
	KindIntegrity
	KindCorruption
	KindPermission
	KindBrokenSymlink
	KindNotSupported
	KindNotImplemented
	KindUnsupportedPlatform
	KindCancelled
	KindInvalidFormat
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindNotFound:
		return "notFound"
	case KindIntegrity:
		return "integrity"
	case KindCorruption:
		return "corruption"
	case KindPermission:
		return "permission"
	case KindBrokenSymlink:
		return "brokenSymlink"
	case KindNotSupported:
		return "notSupported"
	case KindNotImplemented:
		return "notImplemented"
	case KindUnsupportedPlatform:
		return "unsupportedPlatform"
	case KindCancelled:
		return "cancelled"
	case KindInvalidFormat:
		return "invalidFormat"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying a Kind plus whatever operational context
// (path, chunk id) the raising site has. Op and Err are always set; Path and
// ID are filled in where relevant.
type Error struct {
	Kind Kind
	Op   string
	Path string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Path)
	}
	if e.ID != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error for the given kind and operation.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithPath returns a shallow copy of e with Path set.
func (e *Error) WithPath(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// WithID returns a shallow copy of e with ID set.
func (e *Error) WithID(id string) *Error {
	cp := *e
	cp.ID = id
	return &cp
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
