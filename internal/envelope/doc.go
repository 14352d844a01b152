// Package envelope implements the encrypted payload format spoken by
// Philips air purifiers over CoAP.
//
// Every encrypted message on the wire is a single ASCII string with
// this structure:
//
//	+----------+----------------------+------------------+
//	| key (8)  | ciphertext (hex, N)  | digest (hex, 64) |
//	+----------+----------------------+------------------+
//
//   - key: the 8-character uppercase hex session token the sender used
//     to derive the cipher key
//   - ciphertext: AES-128-CBC over the PKCS7-padded plaintext,
//     uppercase hex encoded
//   - digest: SHA-256 over the ASCII bytes of key+ciphertext,
//     uppercase hex encoded
//
// # Key Derivation
//
// The cipher key and IV are derived from the session token and a
// secret shared with the device firmware:
//
//	MD5("JiangPan" + token) -> 32 uppercase hex chars
//	first 16 chars  -> AES-128 key (ASCII bytes)
//	last 16 chars   -> IV (ASCII bytes)
//
// Note that the hex *text* is used as key material, not the decoded
// bytes. This matches the device firmware exactly.
//
// # Usage
//
//	wire, err := envelope.Encrypt("0000000A", []byte(`{"state":{...}}`))
//	...
//	plaintext, err := envelope.Decrypt(wire)
//	if envelope.IsDigestMismatch(err) {
//	    // payload was tampered with or the session desynced
//	}
//
// # Error Handling
//
// Decrypt verifies the digest before touching the ciphertext; a
// mismatch returns *DigestError without attempting decryption.
// Malformed hex or impossible lengths return *DecodeError, and
// corrupt PKCS7 padding returns ErrPadding.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package envelope
