// Package storage provides the byte stores a settings document lives in.
//
// Every backend holds exactly one document and replaces it as a whole on
// Commit:
//   - PlainFile: the XML as-is. Commits go through a temp file and rename.
//   - EncryptedFile: the signed AES envelope from pkg/crypto. A file without
//     the signature is read as plaintext, so existing plain files can be
//     opened with a password and are encrypted on the next commit.
//   - BoltFile: a bbolt database with one settings bucket. The document
//     (plain or envelope) and its modification time are written in one
//     transaction.
//
// Backends serialize their own use with a mutex, which also confines the
// FileEncryptor they own to one goroutine at a time.
package storage
