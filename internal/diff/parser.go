package diff

import (
	"strconv"
	"strings"

	"github.com/reviewpatch/engine/internal/domain"
)

// Parse parses unified-diff text into a ParsedDiff.
//
// It never fails: unparsable lines are skipped, and text with no @@ hunk
// header yields an empty line sequence. Lines before the first hunk header
// are ignored except for the --- / +++ file name headers.
func Parse(diffText string) domain.ParsedDiff {
	result := domain.ParsedDiff{}
	if diffText == "" {
		return result
	}

	lines := strings.Split(diffText, "\n")
	// A trailing newline produces one empty trailing element; drop it so it
	// is not mistaken for an empty context line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	inHunk := false
	oldLine := 0
	newLine := 0

	for _, line := range lines {
		// File headers appear only between hunks. Inside a hunk a "--- " or
		// "+++ " prefix is a deletion of a "-- "-led line or an addition of a
		// "++ "-led line, so body classification must win there.
		if !inHunk {
			if strings.HasPrefix(line, "--- ") {
				result.OldFileName = stripPathPrefix(strings.TrimPrefix(line, "--- "))
				continue
			}
			if strings.HasPrefix(line, "+++ ") {
				result.NewFileName = stripPathPrefix(strings.TrimPrefix(line, "+++ "))
				continue
			}
		}
		if strings.HasPrefix(line, "diff --git") {
			// A new file section ends the current hunk.
			inHunk = false
			continue
		}
		if strings.HasPrefix(line, "index ") {
			continue
		}
		// "\ No newline at end of file" markers
		if strings.HasPrefix(line, "\\ ") {
			continue
		}

		if strings.HasPrefix(line, "@@") {
			oldStart, newStart, ok := parseHunkHeader(line)
			if !ok {
				// Skip malformed headers
				continue
			}
			if !inHunk {
				result.OldStart = oldStart
				result.NewStart = newStart
			}
			inHunk = true
			oldLine = oldStart
			newLine = newStart
			result.Lines = append(result.Lines, domain.DiffLine{
				Kind:    domain.LineHunk,
				Content: line,
			})
			continue
		}

		if !inHunk {
			continue
		}

		diffLine := domain.DiffLine{}
		switch {
		case strings.HasPrefix(line, "+"):
			diffLine.Kind = domain.LineAddition
			diffLine.Content = line[1:]
			diffLine.NewLine = domain.IntPtr(newLine)
			newLine++
		case strings.HasPrefix(line, "-"):
			diffLine.Kind = domain.LineDeletion
			diffLine.Content = line[1:]
			diffLine.OldLine = domain.IntPtr(oldLine)
			oldLine++
		case strings.HasPrefix(line, " "):
			diffLine.Kind = domain.LineContext
			diffLine.Content = line[1:]
			diffLine.OldLine = domain.IntPtr(oldLine)
			diffLine.NewLine = domain.IntPtr(newLine)
			oldLine++
			newLine++
		case line == "":
			// Some generators emit genuinely empty context lines.
			diffLine.Kind = domain.LineContext
			diffLine.OldLine = domain.IntPtr(oldLine)
			diffLine.NewLine = domain.IntPtr(newLine)
			oldLine++
			newLine++
		default:
			// Unknown prefix, skip rather than guess.
			continue
		}
		result.Lines = append(result.Lines, diffLine)
	}

	return result
}

// parseHunkHeader parses a header like "@@ -10,7 +10,8 @@ optional context"
// and returns the old and new start lines.
func parseHunkHeader(line string) (oldStart, newStart int, ok bool) {
	parts := strings.Split(line, "@@")
	if len(parts) < 2 {
		return 0, 0, false
	}

	sawOld, sawNew := false, false
	for _, part := range strings.Fields(strings.TrimSpace(parts[1])) {
		if strings.HasPrefix(part, "-") {
			oldStart = parseRangeStart(strings.TrimPrefix(part, "-"))
			sawOld = true
		} else if strings.HasPrefix(part, "+") {
			newStart = parseRangeStart(strings.TrimPrefix(part, "+"))
			sawNew = true
		}
	}
	return oldStart, newStart, sawOld && sawNew
}

// parseRangeStart parses "start,count" or "start" and returns start.
func parseRangeStart(s string) int {
	if idx := strings.Index(s, ","); idx >= 0 {
		s = s[:idx]
	}
	start, _ := strconv.Atoi(s)
	return start
}

// stripPathPrefix removes a single leading path component such as the a/
// and b/ prefixes git puts in front of file names.
func stripPathPrefix(name string) string {
	name = strings.TrimSpace(name)
	// Header lines may carry a trailing timestamp after a tab.
	if idx := strings.IndexByte(name, '\t'); idx >= 0 {
		name = name[:idx]
	}
	if name == "/dev/null" {
		return ""
	}
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
