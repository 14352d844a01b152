package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// sharedSecret is the key-derivation secret baked into the device
// firmware. It is not user-configurable.
const sharedSecret = "JiangPan"

const (
	// KeyLength is the length of the session-token prefix in characters.
	KeyLength = 8

	// DigestLength is the length of the SHA-256 digest suffix in characters.
	DigestLength = 64

	// minCiphertextLength is one AES block, hex encoded. A valid
	// envelope always carries at least one block of ciphertext.
	minCiphertextLength = 2 * aes.BlockSize
)

// DeriveKeyIV computes the AES-128 key and IV for a session token.
//
// The MD5 of sharedSecret+token is hex encoded uppercase and split in
// half; the ASCII bytes of each 16-character half are the key and IV
// respectively. Deterministic: the same token always yields the same
// pair.
func DeriveKeyIV(token string) (key, iv string) {
	sum := md5.Sum([]byte(sharedSecret + token))
	keyAndIV := strings.ToUpper(hex.EncodeToString(sum[:]))
	half := len(keyAndIV) / 2
	return keyAndIV[:half], keyAndIV[half:]
}

// Encrypt seals plaintext into the wire format using the given session
// token as the key prefix.
func Encrypt(token string, plaintext []byte) (string, error) {
	if len(token) != KeyLength {
		return "", &DecodeError{Reason: fmt.Sprintf("session token must be %d characters, got %d", KeyLength, len(token))}
	}

	key, iv := DeriveKeyIV(token)
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, []byte(iv)).CryptBlocks(ciphertext, padded)

	hexCiphertext := strings.ToUpper(hex.EncodeToString(ciphertext))
	return token + hexCiphertext + digest(token, hexCiphertext), nil
}

// Decrypt opens a wire-format envelope and returns the plaintext.
//
// The digest is verified before any decryption is attempted. The key
// used for decryption is the envelope's own 8-character prefix, not
// any locally held token: the device always declares which key it
// encrypted with.
func Decrypt(env string) ([]byte, error) {
	if len(env) < KeyLength+minCiphertextLength+DigestLength {
		return nil, &DecodeError{Reason: fmt.Sprintf("envelope too short (%d characters)", len(env))}
	}

	token := env[:KeyLength]
	hexCiphertext := env[KeyLength : len(env)-DigestLength]
	want := env[len(env)-DigestLength:]

	if got := digest(token, hexCiphertext); got != want {
		return nil, &DigestError{Expected: want, Actual: got}
	}

	ciphertext, err := hex.DecodeString(hexCiphertext)
	if err != nil {
		return nil, &DecodeError{Reason: "ciphertext is not valid hex", Err: err}
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("ciphertext length %d is not a multiple of the block size", len(ciphertext))}
	}

	key, iv := DeriveKeyIV(token)
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, []byte(iv)).CryptBlocks(padded, ciphertext)

	return unpad(padded, aes.BlockSize)
}

// digest computes the uppercase hex SHA-256 over the ASCII bytes of
// token+ciphertext.
func digest(token, hexCiphertext string) string {
	sum := sha256.Sum256([]byte(token + hexCiphertext))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// pad appends PKCS7 padding up to the next blockSize boundary.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad strips PKCS7 padding, validating every padding byte.
func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrPadding
		}
	}
	return data[:len(data)-n], nil
}
