// Package keyring caches settings file passwords in the OS keyring.
//
// Entries live under the "cfgvault" service. The account is a name-based
// UUID of the file's absolute path, so moving a file drops its entry.
package keyring
