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
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knowlib/knowlib/internal/errs"
)

// MaxMarkdownFileSize is the per-file budget the parser enforces; files
// larger than this are rejected loudly rather than truncated.
const MaxMarkdownFileSize = 1024 * 1024

var (
	headerRe     = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	listMarkerRe = regexp.MustCompile(`^[-*+]\s`)
	listOrderRe  = regexp.MustCompile(`^\d+\.\s`)
	tableSepRe   = regexp.MustCompile(`\|[-:]+\|`)
)

type headingFrame struct {
	level int
	text  string
}

// Parser turns Markdown text into an ordered Block stream for a single
// source file. A Parser is single-use; call Parse once per instance.
type Parser struct {
	sourceFile   string
	blocks       []Block
	headingStack []headingFrame
	blockCounter int
}

// NewParser constructs a Parser for the given source file path (used only
// to stamp Block.SourceFile; no I/O happens here).
func NewParser(sourceFile string) *Parser {
	return &Parser{sourceFile: sourceFile}
}

func (p *Parser) nextBlockID() string {
	p.blockCounter++
	return fmt.Sprintf("block_%03d", p.blockCounter)
}

func (p *Parser) headingPath() []string {
	path := make([]string, len(p.headingStack))
	for i, f := range p.headingStack {
		path[i] = f.text
	}
	return path
}

func (p *Parser) updateHeadingStack(level int, text string) {
	for len(p.headingStack) > 0 && p.headingStack[len(p.headingStack)-1].level >= level {
		p.headingStack = p.headingStack[:len(p.headingStack)-1]
	}
	p.headingStack = append(p.headingStack, headingFrame{level: level, text: text})
}

// detectKind classifies a run of lines, checked in order: fenced-code,
// indented-code, blockquote, list, table, header-section, else paragraph.
func detectKind(lines []string) Kind {
	firstNonEmpty := ""
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			firstNonEmpty = l
			break
		}
	}

	if strings.HasPrefix(strings.TrimLeft(firstNonEmpty, " "), "```") {
		return KindCode
	}

	var nonEmpty []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	if len(nonEmpty) > 0 {
		allIndented := true
		for _, l := range nonEmpty {
			if !strings.HasPrefix(l, "    ") && !strings.HasPrefix(l, "\t") {
				allIndented = false
				break
			}
		}
		if allIndented {
			return KindCode
		}
	}

	stripped := strings.TrimSpace(firstNonEmpty)

	if strings.HasPrefix(stripped, ">") {
		return KindBlockquote
	}

	if listMarkerRe.MatchString(stripped) || listOrderRe.MatchString(stripped) {
		return KindList
	}

	for _, l := range lines {
		if strings.Contains(l, "|") && tableSepRe.MatchString(l) {
			return KindTable
		}
	}

	if strings.HasPrefix(stripped, "#") {
		return KindHeaderSection
	}

	return KindParagraph
}

func (p *Parser) createBlock(content string, lineStart, lineEnd int, kind Kind) Block {
	isCode := kind == KindCode
	canonical := content
	if !isCode {
		canonical = CanonicalizeProseV1(content)
	}
	exact, canon := GenerateChecksums(content, isCode)

	return Block{
		ID:                p.nextBlockID(),
		Kind:              kind,
		Raw:               content,
		Canonical:         canonical,
		SourceFile:        p.sourceFile,
		LineStart:         lineStart,
		LineEnd:           lineEnd,
		HeadingPath:       p.headingPath(),
		ChecksumExact:     exact,
		ChecksumCanonical: canon,
	}
}

// Parse splits content into lines and walks them, producing the ordered
// block stream. It resets internal state so a Parser instance may, in
// principle, be reused across calls (though callers should prefer a fresh
// Parser per document).
func (p *Parser) Parse(content string) []Block {
	lines := strings.Split(content, "\n")
	p.blocks = nil
	p.headingStack = nil
	p.blockCounter = 0

	i := 0
	n := len(lines)

	for i < n {
		line := lines[i]

		// Fenced code block: atomic, spans to the next closing fence.
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			codeStart := i
			codeLines := []string{line}
			i++
			for i < n {
				codeLines = append(codeLines, lines[i])
				if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") && i > codeStart {
					i++
					break
				}
				i++
			}
			blockContent := strings.Join(codeLines, "\n")
			p.blocks = append(p.blocks, p.createBlock(blockContent, codeStart+1, i, KindCode))
			continue
		}

		// Indented code block: atomic, maximal run of indented/blank lines.
		if (strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")) && strings.TrimSpace(line) != "" {
			codeStart := i
			var codeLines []string
			for i < n {
				current := lines[i]
				if strings.TrimSpace(current) == "" || strings.HasPrefix(current, "    ") || strings.HasPrefix(current, "\t") {
					codeLines = append(codeLines, current)
					i++
					continue
				}
				break
			}
			blockContent := strings.Join(codeLines, "\n")
			p.blocks = append(p.blocks, p.createBlock(blockContent, codeStart+1, i, KindCode))
			continue
		}

		// ATX header: updates heading context, produces no block of its own.
		if m := headerRe.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			text := strings.TrimSpace(m[2])
			p.updateHeadingStack(level, text)
			i++
			continue
		}

		if strings.TrimSpace(line) == "" {
			i++
			continue
		}

		// Paragraph / list / blockquote / table: collect until a
		// terminating condition.
		blockStart := i
		var blockLines []string
		initialKind := detectKind([]string{line})

		for i < n {
			current := lines[i]

			if headerRe.MatchString(current) {
				break
			}
			if strings.HasPrefix(strings.TrimSpace(current), "```") {
				break
			}

			if strings.TrimSpace(current) == "" {
				if initialKind != KindList && initialKind != KindBlockquote {
					break
				}
				peek := i + 1
				for peek < n && strings.TrimSpace(lines[peek]) == "" {
					peek++
				}
				if peek < n {
					nextKind := detectKind([]string{lines[peek]})
					if nextKind != initialKind {
						break
					}
				} else {
					break
				}
			}

			blockLines = append(blockLines, current)
			i++
		}

		if len(blockLines) > 0 {
			blockContent := strings.Join(blockLines, "\n")
			p.blocks = append(p.blocks, p.createBlock(blockContent, blockStart+1, i, initialKind))
		}
	}

	return p.blocks
}

// ParseFile reads a Markdown file from disk, enforces the size budget, and
// returns the full SourceDocument (whole-file checksum plus block stream).
func ParseFile(filePath string) (SourceDocument, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return SourceDocument{}, errs.Wrap(errs.KindNotFound, "stat markdown file", err)
	}
	if info.Size() > MaxMarkdownFileSize {
		return SourceDocument{}, errs.New(errs.KindInputTooLarge,
			fmt.Sprintf("file size %d exceeds %dMB limit", info.Size(), MaxMarkdownFileSize/(1024*1024)))
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return SourceDocument{}, errs.Wrap(errs.KindNotFound, "read markdown file", err)
	}
	content := string(raw)

	docChecksum := GenerateChecksum(content)

	parser := NewParser(filePath)
	blocks := parser.Parse(content)

	return SourceDocument{
		FilePath:      filePath,
		ChecksumExact: docChecksum,
		TotalBlocks:   len(blocks),
		Blocks:        blocks,
	}, nil
}
