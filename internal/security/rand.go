package security

import (
	"crypto/rand"
	"encoding/base64"
	"io"
)

// sessionTokenBytes: 256 бит энтропии на токен сессии.
const sessionTokenBytes = 32

// RandomBytes генерирует криптостойкие байты
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	return b, err
}

// RandomStringURLSafe генерирует base64url
func RandomStringURLSafe(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSessionToken: непрозрачный bearer-токен участника комнаты.
func NewSessionToken() (string, error) {
	return RandomStringURLSafe(sessionTokenBytes)
}
