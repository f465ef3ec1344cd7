package util

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// BuildChallenge reconstructs the exact string a client signs when opening a
// connection. All three fields are bound into the signature so none of them
// can be swapped after signing.
func BuildChallenge(timestamp int64, userID, peerID string) string {
	return fmt.Sprintf("%d:%s:%s", timestamp, userID, peerID)
}

// VerifyChallenge checks sig over the reconstructed challenge against pub.
func VerifyChallenge(pub ed25519.PublicKey, timestamp int64, userID, peerID string, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, []byte(BuildChallenge(timestamp, userID, peerID)), sig)
}

// KeysEqual compares two public keys in constant time.
func KeysEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// DecodeKey decodes a base64 wire-format public key or signature.
func DecodeKey(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	return raw, nil
}

// EncodeKey encodes key material for the wire.
func EncodeKey(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}
