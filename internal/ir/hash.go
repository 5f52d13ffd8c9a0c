package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for a future encoding change.
const (
	DomainContext = "mpcgraph/context/v1"
	DomainGraph   = "mpcgraph/graph/v1"
	DomainValue   = "mpcgraph/value/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data). The null separator
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashDoc returns the content address of a document under a domain.
func HashDoc(domain string, d Doc) (string, error) {
	canonical, err := MarshalCanonical(d)
	if err != nil {
		return "", fmt.Errorf("HashDoc: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// HashCanonical hashes bytes that are already canonical JSON.
func HashCanonical(domain string, canonical []byte) string {
	return hashWithDomain(domain, canonical)
}

// ValueHash identifies a runtime value together with its type. It is used
// to compare outputs across runs without storing them.
func ValueHash(t Type, v Value) (string, error) {
	d, err := EncodeValue(t, v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: %w", err)
	}
	return HashDoc(DomainValue, DocObject{
		"type":  EncodeType(t),
		"value": d,
	})
}

// MustValueHash is like ValueHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustValueHash(t Type, v Value) string {
	h, err := ValueHash(t, v)
	if err != nil {
		panic(err)
	}
	return h
}
