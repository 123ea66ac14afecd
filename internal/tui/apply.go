package tui

import (
	"fmt"
	"os/exec"
	"strings"
)

// Outcome holds the result of an interactive review session.
type Outcome struct {
	// Decided is false when the user quit without accepting or rejecting.
	Decided  bool
	Accepted bool
	Message  string
}

// Commit records the staged changes in repoDir with the accepted
// message. It refuses outcomes that were not accepted.
func (o Outcome) Commit(repoDir string) error {
	if !o.Accepted {
		return fmt.Errorf("message was not accepted")
	}
	msg := strings.TrimSpace(o.Message)
	if msg == "" {
		return fmt.Errorf("empty commit message")
	}

	cmd := exec.Command("git", "commit", "--quiet", "-F", "-")
	cmd.Dir = repoDir
	cmd.Stdin = strings.NewReader(msg + "\n")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git commit: %w\n%s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
