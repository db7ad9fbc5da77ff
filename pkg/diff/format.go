package diff

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

const binarySniffLen = 8000

// IsBinary reports whether data looks like binary content.
func IsBinary(data []byte) bool {
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// FormatSummary writes one "<status> <path>" line per change.
func FormatSummary(w io.Writer, changes []FileChange) error {
	for _, c := range changes {
		if _, err := fmt.Fprintf(w, "%s %s\n", c.Type, c.Path); err != nil {
			return err
		}
	}
	return nil
}

// Unified writes a unified diff of before and after for path, using
// context lines around each hunk. Nothing is written when the texts are
// equal.
func Unified(w io.Writer, path string, before, after []byte, context int) error {
	if bytes.Equal(before, after) {
		return nil
	}
	oldName, newName := "a/"+path, "b/"+path
	if before == nil {
		oldName = "/dev/null"
	}
	if after == nil {
		newName = "/dev/null"
	}
	if IsBinary(before) || IsBinary(after) {
		_, err := fmt.Fprintf(w, "Binary files %s and %s differ\n", oldName, newName)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks(Lines(SplitLines(before), SplitLines(after)), context) {
		h.write(&b)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type hunk struct {
	oldStart, oldLen int
	newStart, newLen int
	edits            []Edit
}

func (h hunk) write(b *strings.Builder) {
	fmt.Fprintf(b, "@@ -%s +%s @@\n", hunkRange(h.oldStart, h.oldLen), hunkRange(h.newStart, h.newLen))
	for _, e := range h.edits {
		switch e.Op {
		case Equal:
			b.WriteByte(' ')
		case Insert:
			b.WriteByte('+')
		case Delete:
			b.WriteByte('-')
		}
		b.WriteString(e.Line)
		b.WriteByte('\n')
	}
}

// hunkRange renders "start,len" with the conventions of unified diff: a
// single line omits the length, an empty range points at the line before.
func hunkRange(start, n int) string {
	switch n {
	case 0:
		return fmt.Sprintf("%d,0", start-1)
	case 1:
		return fmt.Sprintf("%d", start)
	default:
		return fmt.Sprintf("%d,%d", start, n)
	}
}

// hunks groups an edit script into hunks with up to context equal lines on
// either side of each change. Changes separated by at most 2*context equal
// lines share a hunk.
func hunks(edits []Edit, context int) []hunk {
	if context < 0 {
		context = 0
	}

	// Line numbers (1-based) at each edit position.
	oldLine := make([]int, len(edits)+1)
	newLine := make([]int, len(edits)+1)
	oldLine[0], newLine[0] = 1, 1
	for i, e := range edits {
		oldLine[i+1], newLine[i+1] = oldLine[i], newLine[i]
		if e.Op != Insert {
			oldLine[i+1]++
		}
		if e.Op != Delete {
			newLine[i+1]++
		}
	}

	var out []hunk
	i := 0
	for i < len(edits) {
		if edits[i].Op == Equal {
			i++
			continue
		}
		start := i - context
		if start < 0 {
			start = 0
		}

		end := i
		for {
			for end < len(edits) && edits[end].Op != Equal {
				end++
			}
			run := end
			for run < len(edits) && edits[run].Op == Equal {
				run++
			}
			if run < len(edits) && run-end <= 2*context {
				end = run
				continue
			}
			end += min(context, run-end)
			break
		}

		h := hunk{oldStart: oldLine[start], newStart: newLine[start], edits: edits[start:end]}
		for _, e := range h.edits {
			if e.Op != Insert {
				h.oldLen++
			}
			if e.Op != Delete {
				h.newLen++
			}
		}
		out = append(out, h)
		i = end
	}
	return out
}
