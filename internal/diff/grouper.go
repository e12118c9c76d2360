package diff

import "github.com/reviewpatch/engine/internal/domain"

// DefaultCollapseThreshold is the minimum run length of consecutive context
// lines that gets folded into a CollapsedGroup.
const DefaultCollapseThreshold = 5

// Group folds long runs of consecutive context lines into collapsed groups
// for display. Runs shorter than threshold are emitted as individual lines.
// A threshold <= 0 selects DefaultCollapseThreshold.
//
// Group is a pure transform: it never inspects approval state and the same
// input always yields the same output.
func Group(lines []domain.DiffLine, threshold int) []domain.DisplayFragment {
	if threshold <= 0 {
		threshold = DefaultCollapseThreshold
	}

	var out []domain.DisplayFragment
	var run []domain.DiffLine

	flush := func() {
		if len(run) == 0 {
			return
		}
		if len(run) >= threshold {
			group := &domain.CollapsedGroup{Count: len(run), Lines: run}
			out = append(out, domain.DisplayFragment{Group: group})
		} else {
			for i := range run {
				out = append(out, domain.DisplayFragment{Line: &run[i]})
			}
		}
		run = nil
	}

	for i := range lines {
		if lines[i].Kind == domain.LineContext {
			run = append(run, lines[i])
			continue
		}
		flush()
		out = append(out, domain.DisplayFragment{Line: &lines[i]})
	}
	flush()

	return out
}

// Flatten expands grouped fragments back into the flat line sequence.
func Flatten(fragments []domain.DisplayFragment) []domain.DiffLine {
	var lines []domain.DiffLine
	for _, f := range fragments {
		switch {
		case f.Group != nil:
			lines = append(lines, f.Group.Lines...)
		case f.Line != nil:
			lines = append(lines, *f.Line)
		}
	}
	return lines
}
