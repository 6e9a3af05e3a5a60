// Copyright (C) 2025 The vbox-unattend Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package unattendutil holds the error-kind taxonomy shared by every
// package in the unattended installation media authoring engine, plus a
// couple of small helpers (offset-carrying errors, secret hashing for logs)
// that every layer needs.
package unattendutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories callers need to
// branch on, without requiring them to inspect error strings.
type Kind string

const (
	KindWrongOrder       Kind = "wrong-order"
	KindInvalidField     Kind = "invalid-field"
	KindMissingFile      Kind = "missing-file"
	KindParseError       Kind = "parse-error"
	KindUnsupportedGuest Kind = "unsupported-guest"
	KindIncompatibleArch Kind = "incompatible-arch"
	KindStorageTopology  Kind = "storage-topology"
	KindIOError          Kind = "io-error"
	KindOutOfMemory      Kind = "out-of-memory"
)

// Error is a Kind-tagged error that wraps an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a Kind-tagged error.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf constructs a Kind-tagged error from a format string.
func Newf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, walking the unwrap chain. Returns
// ("", false) if err (or nothing in its chain) carries a Kind.
func KindOf(err error) (Kind, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return "", false
}

// Is reports whether err's Kind (anywhere in its chain) equals kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// OffsetError is a parse-error that additionally carries the byte offset
// of the offending input, as spec.md requires for template-engine errors.
type OffsetError struct {
	Offset int
	Err    error
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("at offset %d: %v", e.Offset, e.Err)
}

func (e *OffsetError) Unwrap() error { return e.Err }

// AtOffset wraps err as a parse-error carrying the given byte offset.
func AtOffset(op string, offset int, err error) error {
	return New(KindParseError, op, &OffsetError{Offset: offset, Err: err})
}

// HashForLog returns a short, stable, irreversible fingerprint of a secret
// value (password, product key, full unattend script...) suitable for log
// lines. Never log the secret itself.
func HashForLog(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])[:16]
}
