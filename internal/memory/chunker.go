// Package memory implements the chunking, indexing, and hybrid keyword
// plus vector search over durable notes backed by internal/store.
package memory

import (
	"fmt"
	"strings"
)

// maxChunkChars is the soft ceiling before a chunk is subdivided on
// blank-line boundaries.
const maxChunkChars = 2000

// Chunk is one heading-scoped section of a source document, prior to
// being written to the store.
type Chunk struct {
	Heading string
	Content string
}

// ChunkMarkdown splits content by level-2 (##) headings. Content before
// the first level-2 heading becomes a preamble chunk labeled with the
// level-1 (#) title if present, or a synthetic label otherwise. Any
// resulting chunk longer than maxChunkChars is subdivided further on
// blank-line boundaries so no split occurs mid-paragraph.
func ChunkMarkdown(content string) []Chunk {
	lines := strings.Split(content, "\n")

	preambleLabel := "Preamble"
	var sections []Chunk
	var cur *Chunk

	for _, line := range lines {
		if heading, ok := parseHeading(line, 2); ok {
			if cur != nil {
				sections = append(sections, *cur)
			}
			cur = &Chunk{Heading: heading}
			continue
		}
		if h1, ok := parseHeading(line, 1); ok && cur == nil {
			preambleLabel = h1
		}
		if cur == nil {
			cur = &Chunk{Heading: preambleLabel}
		}
		cur.Content += line + "\n"
	}
	if cur != nil {
		sections = append(sections, *cur)
	}

	var out []Chunk
	for _, s := range sections {
		s.Content = strings.TrimSpace(s.Content)
		if s.Content == "" && s.Heading == preambleLabel {
			continue
		}
		out = append(out, subdivide(s)...)
	}
	return out
}

// parseHeading reports whether line is a markdown heading of exactly the
// given level, returning its trimmed title.
func parseHeading(line string, level int) (string, bool) {
	prefix := strings.Repeat("#", level) + " "
	trimmed := strings.TrimLeft(line, "#")
	if len(line)-len(trimmed) != level {
		return "", false
	}
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(trimmed), true
}

// subdivide splits a chunk on blank-line boundaries whenever it exceeds
// maxChunkChars, keeping each part's heading suffixed with a part number
// so the pieces remain distinguishable in the index.
func subdivide(c Chunk) []Chunk {
	if len(c.Content) <= maxChunkChars {
		return []Chunk{c}
	}

	paragraphs := strings.Split(c.Content, "\n\n")
	var parts []Chunk
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		parts = append(parts, Chunk{Heading: c.Heading, Content: strings.TrimSpace(buf.String())})
		buf.Reset()
	}

	for _, p := range paragraphs {
		if buf.Len() > 0 && buf.Len()+len(p)+2 > maxChunkChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
	}
	flush()

	if len(parts) <= 1 {
		return []Chunk{c}
	}
	for i := range parts {
		parts[i].Heading = fmt.Sprintf("%s (part %d)", c.Heading, i+1)
	}
	return parts
}
