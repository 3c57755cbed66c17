package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Status describes how git sees one settings file.
type Status struct {
	IsRepo  bool
	Path    string // as given on the command line
	Tracked bool
	Ignored bool
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	err := cmd.Run()
	return err == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()

	if err != nil {
		return false
	}

	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	err := cmd.Run()

	// git check-ignore returns exit code 0 if file is ignored
	return err == nil
}

// Check reports the git status of the settings file at path.
func Check(path string) *Status {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	status := &Status{Path: path}
	if !IsGitRepo(dir) {
		return status
	}
	status.IsRepo = true
	status.Tracked = IsTracked(dir, name)
	status.Ignored = IsIgnored(dir, name)
	return status
}

// FormatStatus formats git status for display. Plaintext settings should
// stay out of git; encrypted ones may be committed.
func FormatStatus(status *Status, encrypted bool) string {
	if !status.IsRepo {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit Integration:\n")

	switch {
	case encrypted && status.Tracked:
		result.WriteString(fmt.Sprintf("   ok: %s is encrypted and tracked by git\n", status.Path))
	case encrypted:
		result.WriteString(fmt.Sprintf("   ok: %s is encrypted\n", status.Path))
	case status.Tracked:
		result.WriteString(fmt.Sprintf("   error: plaintext %s is tracked by git (run: git rm --cached %s)\n", status.Path, status.Path))
	case !status.Ignored:
		result.WriteString(fmt.Sprintf("   warning: plaintext %s not in .gitignore (add to .gitignore)\n", status.Path))
	default:
		result.WriteString(fmt.Sprintf("   ok: plaintext %s is in .gitignore\n", status.Path))
	}

	return result.String()
}
