// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package block

import (
	"strings"
	"unicode"
)

// CanonicalizeProseV1 collapses every run of whitespace into a single
// space and trims leading/trailing whitespace, preserving every word
// verbatim. Content that IsCodeBlock recognizes as code is returned
// unchanged, so canonical == raw for code blocks.
//
// Idempotent: CanonicalizeProseV1(CanonicalizeProseV1(x)) == CanonicalizeProseV1(x).
func CanonicalizeProseV1(content string) string {
	if content == "" {
		return ""
	}
	if IsCodeBlock(content) {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	inSpace := false
	for _, r := range content {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// IsCodeBlock reports whether content is a fenced or fully-indented code
// block: fenced if the first non-empty line begins with triple-backticks
// (after at most 3 leading spaces); indented if every non-empty line is
// indented with >=4 spaces or a tab.
func IsCodeBlock(content string) bool {
	lines := strings.Split(content, "\n")

	firstNonEmpty := ""
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			firstNonEmpty = line
			break
		}
	}
	if firstNonEmpty == "" {
		return false
	}

	unindented := strings.TrimLeft(firstNonEmpty, " ")
	if len(firstNonEmpty)-len(unindented) <= 3 && strings.HasPrefix(unindented, "```") {
		return true
	}

	hasNonEmpty := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		hasNonEmpty = true
		if !strings.HasPrefix(line, "    ") && !strings.HasPrefix(line, "\t") {
			return false
		}
	}
	return hasNonEmpty
}
