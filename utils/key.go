package utils

import (
	"strings"
	"unicode/utf8"
)

// KeySeparator joins the parts of a composite lock key
const KeySeparator = ":"

// BuildKey constructs a key with the given prefix
func BuildKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + key
}

// JoinKey joins the non-empty parts with KeySeparator, e.g. a route and a user id
func JoinKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, KeySeparator)
}

// KeyLength returns the length of key in characters
func KeyLength(key string) int {
	return utf8.RuneCountInString(key)
}
