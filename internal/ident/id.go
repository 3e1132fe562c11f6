package ident

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IDLength is the length of every generated ID.
const IDLength = 21

// IDAlphabet is the 64-symbol URL-safe alphabet IDs are drawn from.
const IDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_-"

// NewID returns a fresh cryptographically random ID of IDLength symbols.
// With 126 bits of entropy a collision is not a practical concern.
func NewID() string {
	id, err := gonanoid.Generate(IDAlphabet, IDLength)
	if err != nil {
		// crypto/rand failure is not recoverable
		panic("ident: failed to generate ID: " + err.Error())
	}
	return id
}

// IsID reports whether s has the shape of an ID produced by NewID.
func IsID(s string) bool {
	if len(s) != IDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
