package security

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

// IDGenerator выдаёт короткие URL-safe идентификаторы (комнаты, сообщения).
type IDGenerator func() string

const DefaultIDLength = 21

func NewIDGenerator(length int) (IDGenerator, error) {
	if length <= 0 {
		length = DefaultIDLength
	}
	gen, err := nanoid.Standard(length)
	if err != nil {
		return nil, fmt.Errorf("nanoid: %w", err)
	}
	return IDGenerator(gen), nil
}

// MustIDGenerator для тестов.
func MustIDGenerator(length int) IDGenerator {
	gen, err := NewIDGenerator(length)
	if err != nil {
		panic(err)
	}
	return gen
}
