package exchange

import (
	"fmt"
	"io"

	"filippo.io/age"
)

// Bundle sealing wraps export files in age's scrypt-based passphrase
// encryption. There is no key pair to manage: the passphrase given at
// export time is the whole secret, which suits bundles that travel on
// loose media.

// sealWriter wraps w so everything written is encrypted to passphrase.
// The returned writer must be closed to finalize the ciphertext.
func sealWriter(w io.Writer, passphrase string) (io.WriteCloser, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	return encWriter, nil
}

// sealedReader wraps r, decrypting with passphrase. Fails up front when
// the passphrase is wrong or the data is not an age stream.
func sealedReader(r io.Reader, passphrase string) (io.Reader, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return decReader, nil
}
