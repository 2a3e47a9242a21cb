package domain

const (
	EventChatMessage = "chat.message"
	EventChatDestroy = "chat.destroy"
	// EventPresence: изменилось число живых realtime-соединений.
	EventPresence = "chat.presence"
)

// Event: событие канала комнаты. Не сохраняется, получают только текущие подписчики.
type Event struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Payload any    `json:"payload"`
}

type DestroyPayload struct {
	IsDestroyed bool `json:"isDestroyed"`
}

type PresencePayload struct {
	Online int64 `json:"online"`
}
