package diff

import (
	"fmt"
	"strings"

	"github.com/reviewpatch/engine/internal/domain"
)

// Reconstruct serializes a parsed line sequence back into unified-diff text,
// the inverse of Parse. File headers are emitted only when the corresponding
// name is non-empty.
func Reconstruct(oldFileName, newFileName string, lines []domain.DiffLine) string {
	var b strings.Builder

	if oldFileName != "" {
		fmt.Fprintf(&b, "--- a/%s\n", oldFileName)
	}
	if newFileName != "" {
		fmt.Fprintf(&b, "+++ b/%s\n", newFileName)
	}

	for _, line := range lines {
		switch line.Kind {
		case domain.LineHunk:
			b.WriteString(line.Content)
		case domain.LineAddition:
			b.WriteByte('+')
			b.WriteString(line.Content)
		case domain.LineDeletion:
			b.WriteByte('-')
			b.WriteString(line.Content)
		case domain.LineContext:
			b.WriteByte(' ')
			b.WriteString(line.Content)
		default:
			continue
		}
		b.WriteByte('\n')
	}

	return b.String()
}
