package envelope

import (
	"errors"
	"fmt"
)

// ErrPadding indicates the decrypted plaintext did not carry valid
// PKCS7 padding. This usually means the envelope was encrypted with a
// different token than its prefix claims.
var ErrPadding = errors.New("invalid PKCS7 padding")

// DigestError indicates the envelope's SHA-256 digest did not match
// the recomputed value. The ciphertext is never decrypted in this case.
type DigestError struct {
	Expected string // digest carried by the envelope
	Actual   string // digest recomputed over key+ciphertext
}

// Error implements the error interface
func (e *DigestError) Error() string {
	return fmt.Sprintf("digest mismatch: envelope carries %s, computed %s", e.Expected, e.Actual)
}

// DecodeError indicates a structurally malformed envelope: impossible
// length, non-hex ciphertext, or a ciphertext that is not a whole
// number of cipher blocks.
type DecodeError struct {
	Reason string
	Err    error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed envelope: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed envelope: %s", e.Reason)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDigestMismatch checks if an error is a digest verification failure
func IsDigestMismatch(err error) bool {
	var digestErr *DigestError
	return errors.As(err, &digestErr)
}

// IsDecodeError checks if an error is a malformed-envelope error
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// IsPaddingError checks if an error is a PKCS7 padding failure
func IsPaddingError(err error) bool {
	return errors.Is(err, ErrPadding)
}
