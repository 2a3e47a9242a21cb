package domain

import "crypto/subtle"

// TokensEqual сравнивает токены за постоянное время.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func ContainsToken(tokens []string, token string) bool {
	if token == "" {
		return false
	}
	found := false
	for _, t := range tokens {
		if TokensEqual(t, token) {
			found = true
		}
	}
	return found
}
