package analyzer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Confirm prompts "prompt [y/N]" on out and reads one line of consent from
// in. Modeled on the teacher's cmd/crisk interactive-prompt idiom: when in
// is not a terminal (CI, piped input) the
// prompt is still printed for operator visibility but treated as declined
// unless autoConfirm forces it, since there is nobody to answer it.
func Confirm(in *os.File, out io.Writer, prompt string, autoConfirm bool) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)

	if autoConfirm {
		fmt.Fprintln(out, "y (auto-confirmed)")
		return true, nil
	}

	if !term.IsTerminal(int(in.Fd())) {
		fmt.Fprintln(out, "n (no terminal attached)")
		return false, nil
	}

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false, scanner.Err()
	}
	return isYes(scanner.Text()), nil
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "y" || s == "yes"
}
