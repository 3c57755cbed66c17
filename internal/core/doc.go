// Package core provides the cfgvault operations on raw settings files.
//
// A Vault opens one settings file through pkg/storage and edits its
// document without a schema: entries are read and written as raw XML
// payloads, and entries the caller does not touch are written back as they
// were. Edits hold a guard for the duration of a load, modify, commit cycle.
//
// Whole-file operations:
//   - Encrypt: plaintext to envelope
//   - Decrypt: envelope to plaintext
//   - ChangePassword: envelope to envelope under a new password
//   - Diff: unified diff of two decrypted documents
package core
