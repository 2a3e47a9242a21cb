package domain

const (
	MaxSenderLen = 100
	MaxTextLen   = 1000
)

type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix ms
	RoomID    string `json:"roomId"`
	// Token: владелец сообщения. Отдаётся только самому владельцу.
	Token string `json:"token,omitempty"`
}

// RedactedFor возвращает копию сообщения, в которой токен владельца
// оставлен только если он совпадает с requester.
func (m Message) RedactedFor(requester string) Message {
	out := m
	if requester == "" || !TokensEqual(m.Token, requester) {
		out.Token = ""
	}
	return out
}
