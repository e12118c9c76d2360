package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContextLines is the number of unchanged lines shown around each
// change in generated diffs.
const DefaultContextLines = 3

// lineOp is a single line of a computed diff before hunk assembly.
type lineOp struct {
	op   byte // ' ', '+' or '-'
	text string
}

// Unified computes a unified diff between two versions of a file's content.
// Returns the empty string when the contents are identical. A negative
// contextLines selects DefaultContextLines.
func Unified(filePath, oldContent, newContent string, contextLines int) string {
	if oldContent == newContent {
		return ""
	}
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}

	ops := lineOps(oldContent, newContent)

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", filePath)
	fmt.Fprintf(&b, "+++ b/%s\n", filePath)

	i := 0
	oldLine, newLine := 1, 1
	for i < len(ops) {
		if ops[i].op == ' ' {
			oldLine++
			newLine++
			i++
			continue
		}

		// Change found at i. The hunk opens up to contextLines of
		// preceding context and runs until changes stop arriving within
		// 2*contextLines of each other.
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		leading := i - start
		hunkOldStart := oldLine - leading
		hunkNewStart := newLine - leading

		lastChange := i
		j := i
		for j < len(ops) {
			if ops[j].op != ' ' {
				lastChange = j
			} else if j-lastChange > 2*contextLines {
				break
			}
			j++
		}
		end := lastChange + contextLines + 1
		if end > len(ops) {
			end = len(ops)
		}

		oldCount, newCount := 0, 0
		var body strings.Builder
		for k := start; k < end; k++ {
			switch ops[k].op {
			case ' ':
				oldCount++
				newCount++
			case '-':
				oldCount++
			case '+':
				newCount++
			}
			body.WriteByte(ops[k].op)
			body.WriteString(ops[k].text)
			body.WriteByte('\n')
		}

		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", hunkOldStart, oldCount, hunkNewStart, newCount)
		b.WriteString(body.String())

		// Advance the line counters over the consumed ops.
		for k := i; k < end; k++ {
			switch ops[k].op {
			case ' ':
				oldLine++
				newLine++
			case '-':
				oldLine++
			case '+':
				newLine++
			}
		}
		i = end
	}

	return b.String()
}

// lineOps computes a line-level diff of the two contents.
func lineOps(oldContent, newContent string) []lineOp {
	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []lineOp
	for _, d := range diffs {
		var op byte
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = '+'
		case diffmatchpatch.DiffDelete:
			op = '-'
		default:
			op = ' '
		}
		for _, line := range splitLines(d.Text) {
			ops = append(ops, lineOp{op: op, text: line})
		}
	}
	return ops
}

// splitLines splits text into lines without their trailing newlines. A
// trailing newline does not produce an extra empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
