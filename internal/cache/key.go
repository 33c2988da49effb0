package cache

import (
	"errors"
	"strings"
)

// ReservedChars are the characters a key must not contain.
const ReservedChars = `{}()/\@:`

// ValidateKey checks that key is usable by every engine.
func ValidateKey(key string) error {
	if key == "" {
		return &Error{Kind: KindInvalidKey, Msg: "key should be a non empty string"}
	}
	if strings.ContainsAny(key, ReservedChars) {
		return &Error{Kind: KindInvalidKey, Key: key, Msg: "can't validate the specified key"}
	}
	return nil
}

// checkKey is ValidateKey tagged with the operation name.
func checkKey(op, key string) error {
	err := ValidateKey(key)
	var ce *Error
	if errors.As(err, &ce) {
		ce.Op = op
	}
	return err
}

func checkKeys(op string, keys []string) error {
	for _, k := range keys {
		if err := checkKey(op, k); err != nil {
			return err
		}
	}
	return nil
}
