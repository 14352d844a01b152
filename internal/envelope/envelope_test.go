package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestDeriveKeyIVDeterministic(t *testing.T) {
	key1, iv1 := DeriveKeyIV("0000000A")
	key2, iv2 := DeriveKeyIV("0000000A")

	if key1 != key2 {
		t.Errorf("key not deterministic: %s != %s", key1, key2)
	}
	if iv1 != iv2 {
		t.Errorf("iv not deterministic: %s != %s", iv1, iv2)
	}

	if len(key1) != 16 {
		t.Errorf("key length = %d, want 16", len(key1))
	}
	if len(iv1) != 16 {
		t.Errorf("iv length = %d, want 16", len(iv1))
	}

	// Keys must be uppercase hex text
	if key1 != strings.ToUpper(key1) {
		t.Errorf("key %s is not uppercase", key1)
	}
}

func TestDeriveKeyIVDistinctTokens(t *testing.T) {
	key1, iv1 := DeriveKeyIV("0000000A")
	key2, iv2 := DeriveKeyIV("0000000B")

	if key1 == key2 {
		t.Errorf("different tokens produced the same key: %s", key1)
	}
	if iv1 == iv2 {
		t.Errorf("different tokens produced the same iv: %s", iv1)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	payloads := []string{
		`{"state":{"reported":{"pwr":"1"}}}`,
		`{"state":{"desired":{"CommandType":"app","DeviceId":"","EnduserId":"","mode":"AG"}}}`,
		`{}`,
		strings.Repeat("x", 1000),
	}
	tokens := []string{"00000000", "0000000A", "FFFFFFFF", "DEADBEEF"}

	for _, token := range tokens {
		for _, payload := range payloads {
			env, err := Encrypt(token, []byte(payload))
			if err != nil {
				t.Fatalf("Encrypt(%s) failed: %v", token, err)
			}

			plaintext, err := Decrypt(env)
			if err != nil {
				t.Fatalf("Decrypt failed for token %s: %v", token, err)
			}

			if !bytes.Equal(plaintext, []byte(payload)) {
				t.Errorf("round trip mismatch for token %s: got %q, want %q", token, plaintext, payload)
			}
		}
	}
}

func TestEncryptEnvelopeStructure(t *testing.T) {
	env, err := Encrypt("AABBCCDD", []byte(`{"state":{"reported":{"pwr":"1"}}}`))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if !strings.HasPrefix(env, "AABBCCDD") {
		t.Errorf("envelope does not start with the session token: %s", env[:KeyLength])
	}

	hexCiphertext := env[KeyLength : len(env)-DigestLength]
	if len(hexCiphertext)%32 != 0 {
		t.Errorf("ciphertext length %d is not a whole number of hex-encoded blocks", len(hexCiphertext))
	}
	if hexCiphertext != strings.ToUpper(hexCiphertext) {
		t.Error("ciphertext is not uppercase hex")
	}

	// Digest must cover the ASCII of key+ciphertext
	sum := sha256.Sum256([]byte("AABBCCDD" + hexCiphertext))
	want := strings.ToUpper(hex.EncodeToString(sum[:]))
	if got := env[len(env)-DigestLength:]; got != want {
		t.Errorf("digest = %s, want %s", got, want)
	}
}

func TestEncryptRejectsBadToken(t *testing.T) {
	if _, err := Encrypt("ABC", []byte("x")); !IsDecodeError(err) {
		t.Errorf("Encrypt with short token: err = %v, want DecodeError", err)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	env, err := Encrypt("0000000A", []byte(`{"state":{"reported":{"pwr":"1"}}}`))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip one character in every position of the ciphertext region;
	// each must be caught by the digest check, never silently decrypted.
	for i := KeyLength; i < len(env)-DigestLength; i++ {
		tampered := flipHexChar(env, i)
		_, err := Decrypt(tampered)
		if !IsDigestMismatch(err) {
			t.Fatalf("tampering position %d: err = %v, want DigestError", i, err)
		}
	}
}

func TestDecryptTamperedDigest(t *testing.T) {
	env, err := Encrypt("0000000A", []byte(`{"pwr":"1"}`))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	for i := len(env) - DigestLength; i < len(env); i++ {
		tampered := flipHexChar(env, i)
		_, err := Decrypt(tampered)
		if !IsDigestMismatch(err) {
			t.Fatalf("tampering position %d: err = %v, want DigestError", i, err)
		}
	}
}

func TestDecryptTooShort(t *testing.T) {
	cases := []string{
		"",
		"AABBCCDD",
		"AABBCCDD" + strings.Repeat("0", DigestLength), // no ciphertext at all
	}
	for _, env := range cases {
		if _, err := Decrypt(env); !IsDecodeError(err) {
			t.Errorf("Decrypt(%d chars): err = %v, want DecodeError", len(env), err)
		}
	}
}

func TestDecryptNonHexCiphertext(t *testing.T) {
	token := "0000000A"
	garbage := strings.Repeat("ZZ", 16) // right length, not hex

	sum := sha256.Sum256([]byte(token + garbage))
	env := token + garbage + strings.ToUpper(hex.EncodeToString(sum[:]))

	if _, err := Decrypt(env); !IsDecodeError(err) {
		t.Errorf("err = %v, want DecodeError", err)
	}
}

func TestDecryptBadPadding(t *testing.T) {
	token := "0000000A"
	key, iv := DeriveKeyIV(token)

	// Encrypt one block whose final byte is not valid padding.
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	plaintext := make([]byte, aes.BlockSize) // trailing 0x00 is never valid PKCS7
	ciphertext := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, []byte(iv)).CryptBlocks(ciphertext, plaintext)

	hexCiphertext := strings.ToUpper(hex.EncodeToString(ciphertext))
	sum := sha256.Sum256([]byte(token + hexCiphertext))
	env := token + hexCiphertext + strings.ToUpper(hex.EncodeToString(sum[:]))

	if _, err := Decrypt(env); !IsPaddingError(err) {
		t.Errorf("err = %v, want ErrPadding", err)
	}
}

func TestUnpadRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"partial block", bytes.Repeat([]byte{1}, 15)},
		{"zero padding byte", append(bytes.Repeat([]byte{0}, 15), 0)},
		{"padding larger than block", append(bytes.Repeat([]byte{17}, 15), 17)},
		{"inconsistent padding bytes", append(bytes.Repeat([]byte{2}, 14), 3, 2)},
	}

	for _, tc := range cases {
		if _, err := unpad(tc.data, 16); err == nil {
			t.Errorf("%s: unpad accepted malformed padding", tc.name)
		}
	}
}

func TestPadUnpadRoundTrip(t *testing.T) {
	for n := 0; n < 48; n++ {
		data := bytes.Repeat([]byte{0xAB}, n)
		padded := pad(data, 16)

		if len(padded)%16 != 0 {
			t.Fatalf("pad(%d bytes) = %d bytes, not block aligned", n, len(padded))
		}

		unpadded, err := unpad(padded, 16)
		if err != nil {
			t.Fatalf("unpad failed for %d bytes: %v", n, err)
		}
		if !bytes.Equal(unpadded, data) {
			t.Errorf("pad/unpad mismatch for %d bytes", n)
		}
	}
}

// flipHexChar replaces the character at position i with a different
// valid hex character so length and alphabet stay intact.
func flipHexChar(s string, i int) string {
	b := []byte(s)
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}
