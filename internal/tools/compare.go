package tools

import "crypto/subtle"

// SecureCompareString compares two strings in constant time.
func SecureCompareString(given, actual string) bool {
	if subtle.ConstantTimeEq(int32(len(given)), int32(len(actual))) == 1 {
		return subtle.ConstantTimeCompare([]byte(given), []byte(actual)) == 1
	}
	// Burn the same amount of work on length mismatch.
	subtle.ConstantTimeCompare([]byte(actual), []byte(actual))
	return false
}
