// Package git provides git status checks for settings files.
//
// A plaintext settings file tracked by git is reported as an error and one
// missing from .gitignore as a warning. Encrypted files are fine either way.
package git
