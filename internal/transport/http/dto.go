package http

import (
	"errors"
	"unicode/utf8"

	"github.com/cwrk-planet/burner-chat/internal/domain"
)

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

type TTLResponse struct {
	TTL int64 `json:"ttl"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PostMessageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

func (r PostMessageRequest) Validate() error {
	if n := utf8.RuneCountInString(r.Sender); n == 0 || n > domain.MaxSenderLen {
		return errInvalidSender
	}
	if n := utf8.RuneCountInString(r.Text); n == 0 || n > domain.MaxTextLen {
		return errInvalidText
	}
	return nil
}

type MessageResponse struct {
	Message domain.Message `json:"message"`
}

type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

type PresenceResponse struct {
	Online int64 `json:"online"`
}

var (
	errInvalidSender = errors.New("sender must be 1..100 characters")
	errInvalidText   = errors.New("text must be 1..1000 characters")
)
