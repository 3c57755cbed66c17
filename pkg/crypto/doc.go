// Package crypto provides the password-keyed envelope used by cfgvault
// settings files.
//
// Envelope layout:
//   - bytes 0-15: fixed signature identifying the format
//   - bytes 16..: AES-128-CBC ciphertext of the document, zero padded
//
// Key derivation (LegacyDeriver, the default):
//   - key = MD5 of the UTF-16LE password with adjacent characters swapped
//   - IV  = MD5 of the UTF-16LE password
//   - no salt, so the same password always yields the same key
//
// PBKDF2Deriver and Argon2Deriver derive key material with a real KDF. Files
// written with them are not readable by the legacy deriver.
//
// The envelope is not authenticated: a wrong password and a corrupted file
// are indistinguishable and both surface as ErrDecrypt or as garbage text.
//
// Memory safety:
//   - Call FileEncryptor.Destroy() when done with an encryptor
//   - Use ClearBytes() to zero sensitive buffers
package crypto
