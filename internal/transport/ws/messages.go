package ws

import "github.com/cwrk-planet/burner-chat/internal/domain"

// Типы кадров, которые уходят клиенту
const (
	TypeState    = "state" // снапшот при подключении
	TypeMessage  = domain.EventChatMessage
	TypeDestroy  = domain.EventChatDestroy
	TypePresence = domain.EventPresence
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type StatePayload struct {
	RoomID string `json:"roomId"`
	Online int64  `json:"online"`
}

func fromEvent(ev domain.Event) Message {
	return Message{Type: ev.Type, Payload: ev.Payload}
}
