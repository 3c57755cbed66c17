// Package guard provides the bounded-wait lock that serializes load and save
// on one settings instance.
//
// Unlike sync.Mutex, acquisition gives up after a timeout or when the
// context is done, so a stuck holder turns into an error instead of a hang.
package guard
