// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errors implements the indexing engine's error taxonomy: each
// error carries a kind (for exit-code mapping), a human suggestion, and an
// optional wrapped cause.
package errors

import "fmt"

// Kind classifies an error into the taxonomy used to pick a CLI exit code.
type Kind int

const (
	// KindIO covers any lower-level filesystem error.
	KindIO Kind = iota + 1
	// KindFileNotFound covers a missing source file or missing cache shard.
	KindFileNotFound
	// KindUnsupportedLanguage covers a file extension absent from the grammar registry.
	KindUnsupportedLanguage
	// KindParseFailure covers a tree-sitter (or overlay parser) failure on a single file.
	KindParseFailure
	// KindExtractionFailure covers the generic extractor violating a structural assumption.
	KindExtractionFailure
	// KindQueryError covers a query-time invariant violation, e.g. a malformed shard.
	KindQueryError
	// KindGitError covers a git subprocess failure.
	KindGitError
)

// ExitCode returns the CLI exit code associated with a Kind, per spec.md §6.
func (k Kind) ExitCode() int {
	switch k {
	case KindFileNotFound:
		return 1
	case KindUnsupportedLanguage:
		return 2
	case KindParseFailure:
		return 3
	case KindExtractionFailure, KindQueryError:
		return 4
	case KindGitError:
		return 5
	default:
		return 1
	}
}

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFileNotFound:
		return "file_not_found"
	case KindUnsupportedLanguage:
		return "unsupported_language"
	case KindParseFailure:
		return "parse_failure"
	case KindExtractionFailure:
		return "extraction_failure"
	case KindQueryError:
		return "query_error"
	case KindGitError:
		return "git_error"
	default:
		return "unknown"
	}
}

// Error is the engine's typed error. It is always constructed through one
// of the kind-specific helpers below so that call sites never have to
// remember the four-argument shape by hand.
type Error struct {
	Kind       Kind
	Message    string // short, user-facing summary
	Detail     string // longer explanation of what went wrong
	Suggestion string // what the user or caller can do about it
	Cause      error  // wrapped underlying error, if any
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, message, detail, suggestion string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Detail: detail, Suggestion: suggestion, Cause: cause}
}

// NewInternalError constructs a KindIO error. Named to match the shape the
// original CIE CLI used for unexpected environment failures (e.g. no home
// directory), kept here so call sites read the same way.
func NewInternalError(message, detail, suggestion string, cause error) *Error {
	return newError(KindIO, message, detail, suggestion, cause)
}

// NewFileNotFound constructs a KindFileNotFound error for a missing source
// file or missing cache shard.
func NewFileNotFound(path string, cause error) *Error {
	return newError(KindFileNotFound, "file not found", path,
		"check the path is correct and the file has not been deleted", cause)
}

// NewUnsupportedLanguage constructs a KindUnsupportedLanguage error for a
// file extension absent from the grammar registry.
func NewUnsupportedLanguage(path string) *Error {
	return newError(KindUnsupportedLanguage, "unsupported language", path,
		"add a grammar registration for this file extension", nil)
}

// NewParseFailure constructs a KindParseFailure error, confined to a
// single file per spec.md §4.2.
func NewParseFailure(path string, cause error) *Error {
	return newError(KindParseFailure, "parse failure", path,
		"the file was skipped; indexing continues for the rest of the repository", cause)
}

// NewExtractionFailure constructs a KindExtractionFailure error.
func NewExtractionFailure(path, detail string, cause error) *Error {
	return newError(KindExtractionFailure, "semantic extraction failed", detail,
		fmt.Sprintf("file %s was skipped", path), cause)
}

// NewQueryError constructs a KindQueryError error for a query-time
// invariant violation such as a malformed shard.
func NewQueryError(message string, cause error) *Error {
	return newError(KindQueryError, message, "", "the shard may be corrupt; try a full rebuild", cause)
}

// NewGitError constructs a KindGitError error for a git subprocess failure.
func NewGitError(op string, cause error) *Error {
	return newError(KindGitError, "git operation failed", op,
		"verify the repository has a valid .git directory and git is installed", cause)
}

// NewIOError constructs a generic KindIO error.
func NewIOError(op string, cause error) *Error {
	return newError(KindIO, "io error", op, "", cause)
}
