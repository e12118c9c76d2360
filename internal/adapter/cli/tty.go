package cli

import (
	"os"

	"golang.org/x/term"
)

// IsTTY checks if the given file descriptor is a terminal.
// This is useful for detecting whether the application is running
// in an interactive environment (e.g., a user's terminal) or
// in a non-interactive environment (e.g., CI/CD pipeline, piped input).
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// IsInteractive checks if stdin is a TTY, indicating that the user
// can answer the per-suggestion prompts. Returns false in CI/CD
// environments, when input is piped, or when running as a background
// process; the review command then requires --approve-all or
// --reject-all.
func IsInteractive() bool {
	return IsTTY(os.Stdin.Fd())
}
