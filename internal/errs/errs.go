// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package errs defines the error taxonomy shared by every knowlib component.
//
// Every failure surfaced across component boundaries (parser, integrity
// verifier, embedding provider, vector store, classifier, retriever) wraps
// a Kind so that callers can branch on failure class with errors.Is/As
// instead of string-matching messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independent of which component raised it.
type Kind int

const (
	// KindUnknown is the zero value; never returned deliberately.
	KindUnknown Kind = iota

	// KindInputTooLarge indicates a source file exceeds the per-file budget.
	KindInputTooLarge

	// KindParseError indicates malformed Markdown the parser cannot tolerate.
	KindParseError

	// KindIntegrityViolation indicates a STRICT write whose bytes did not
	// match the expected checksum.
	KindIntegrityViolation

	// KindPathTraversal indicates a destination that escapes the library root.
	KindPathTraversal

	// KindMissingCredential indicates an embedding or LLM provider could not
	// resolve an API key.
	KindMissingCredential

	// KindTransportError indicates a network failure talking to an
	// embedding provider, LLM, or vector store.
	KindTransportError

	// KindTimeout indicates a per-call deadline expired. Callers treat this
	// the same as KindTransportError.
	KindTimeout

	// KindNotFound indicates a category path, content id, or file is absent.
	KindNotFound

	// KindProposalRejected indicates the taxonomy rejected a malformed
	// category proposal.
	KindProposalRejected

	// KindLLMParseError indicates an LLM response was not valid JSON. Never
	// surfaced upward as a hard failure; the classifier downgrades instead.
	KindLLMParseError
)

// String renders the Kind for logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindInputTooLarge:
		return "input_too_large"
	case KindParseError:
		return "parse_error"
	case KindIntegrityViolation:
		return "integrity_violation"
	case KindPathTraversal:
		return "path_traversal"
	case KindMissingCredential:
		return "missing_credential"
	case KindTransportError:
		return "transport_error"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindProposalRejected:
		return "proposal_rejected"
	case KindLLMParseError:
		return "llm_parse_error"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carrying a Kind plus a wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause. If cause is already a *Error of the
// same kind, it is returned unchanged to avoid nested duplicate wrapping.
func Wrap(kind Kind, message string, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) && existing.Kind == kind {
		return existing
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// IsTransportLike reports whether err should be treated as a transport
// failure by callers, per the Timeout-is-TransportError error handling rule.
func IsTransportLike(err error) bool {
	return Is(err, KindTransportError) || Is(err, KindTimeout)
}
