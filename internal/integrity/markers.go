// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package integrity

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/knowlib/knowlib/internal/block"
	"github.com/knowlib/knowlib/internal/errs"
)

// Block markers are HTML-comment delimiters written into library files so
// that blocks can be extracted again later with their provenance intact.

var (
	markerStartRe = regexp.MustCompile(
		`<!-- BLOCK_START id=(\S+) source=(\S+) session=(\S+) checksum=([0-9a-f]{16}) written=(\S+) -->`)
	markerEndRe = regexp.MustCompile(`<!-- BLOCK_END id=(\S+) -->`)
)

// MarkedBlock is one marker-delimited region recovered from a library file.
type MarkedBlock struct {
	ID         string
	SourceFile string
	SessionID  string
	Checksum   string
	WrittenAt  time.Time
	Content    string
}

// RenderMarked wraps content in BLOCK_START/BLOCK_END markers carrying
// b's identity and checksum. The checksum recorded is the canonical one,
// so a later extraction can be verified under the same whitespace
// tolerance the STRICT write mode applies.
func RenderMarked(b block.Block, content, sessionID string, written time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<!-- BLOCK_START id=%s source=%s session=%s checksum=%s written=%s -->\n",
		b.ID, b.SourceFile, sessionID, b.ChecksumCanonical, written.UTC().Format(time.RFC3339))
	sb.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "<!-- BLOCK_END id=%s -->", b.ID)
	return sb.String()
}

// ExtractMarked recovers every marker-delimited block from text, in
// document order. A start marker with no matching end marker, or an end
// marker whose id disagrees with the preceding start, is a parse error.
func ExtractMarked(text string) ([]MarkedBlock, error) {
	var out []MarkedBlock
	rest := text

	for {
		loc := markerStartRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			return out, nil
		}

		m := markerStartRe.FindStringSubmatch(rest[loc[0]:])
		id, source, session, checksum, writtenStr := m[1], m[2], m[3], m[4], m[5]

		written, err := time.Parse(time.RFC3339, writtenStr)
		if err != nil {
			return nil, errs.Wrap(errs.KindParseError,
				fmt.Sprintf("invalid written timestamp in marker for %s", id), err)
		}

		after := rest[loc[1]:]
		endLoc := markerEndRe.FindStringSubmatchIndex(after)
		if endLoc == nil {
			return nil, errs.New(errs.KindParseError,
				fmt.Sprintf("BLOCK_START %s has no matching BLOCK_END", id))
		}
		endID := markerEndRe.FindStringSubmatch(after[endLoc[0]:])[1]
		if endID != id {
			return nil, errs.New(errs.KindParseError,
				fmt.Sprintf("BLOCK_END id %s does not match BLOCK_START id %s", endID, id))
		}

		content := strings.TrimPrefix(after[:endLoc[0]], "\n")
		content = strings.TrimSuffix(content, "\n")

		out = append(out, MarkedBlock{
			ID:         id,
			SourceFile: source,
			SessionID:  session,
			Checksum:   checksum,
			WrittenAt:  written,
			Content:    content,
		})

		rest = after[endLoc[1]:]
	}
}

// VerifyMarked checks a recovered block's content against its recorded
// canonical checksum.
func VerifyMarked(mb MarkedBlock) bool {
	return block.VerifyCanonicalChecksum(mb.Content, mb.Checksum)
}
