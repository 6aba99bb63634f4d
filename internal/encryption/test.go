package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"tidy-go/internal/snapshot"
)

// testMagic marks data sealed by TestEncryptor.
var testMagic = []byte("TIDYTEST")

// TestEncryptor is a deterministic, reversible stand-in for age in tests.
// Sealed data is the magic prefix followed by the plaintext with every byte
// inverted, so it never equals the input.
type TestEncryptor struct {
	passphrase string
}

var _ snapshot.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading data: %w", err)
	}
	if _, err := w.Write(append(append([]byte(nil), testMagic...), invert(data)...)); err != nil {
		return fmt.Errorf("writing sealed data: %w", err)
	}
	return nil
}

// Unlock rejects a passphrase different from the one given to Setup.
func (e *TestEncryptor) Unlock(passphrase string) (snapshot.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, errors.New("incorrect passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext opens data sealed by TestEncryptor.
type TestDecryptionContext struct{}

var _ snapshot.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading sealed data: %w", err)
	}
	if !bytes.HasPrefix(data, testMagic) {
		return errors.New("invalid test encryption header")
	}
	if _, err := w.Write(invert(data[len(testMagic):])); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return nil
}

func invert(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = ^b
	}
	return out
}
