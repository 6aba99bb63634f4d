// Package snapshot stores versioned copies of the rule store and history
// ledger outside the machine, optionally age-encrypted.
package snapshot

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no snapshot exists under the name.
var ErrNotFound = errors.New("snapshot not found")

// Store holds one snapshot per name together with its version.
type Store interface {
	// Put replaces the snapshot stored under name. size must match the
	// number of bytes read from r.
	Put(ctx context.Context, name string, r io.Reader, size int64, version int64) error

	// Get writes the snapshot stored under name to w and returns its version.
	Get(ctx context.Context, name string, w io.Writer) (int64, error)

	// Version returns the stored version, or 0 when nothing is stored.
	Version(ctx context.Context, name string) (int64, error)
}

// Encryptor encrypts snapshots with a public key. Decryption needs the
// private key, which is unlocked with a passphrase.
type Encryptor interface {
	// Setup generates the key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both keys exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key for one session.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
