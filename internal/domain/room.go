package domain

import "time"

const (
	// DefaultRoomTTL: время жизни комнаты с момента создания.
	DefaultRoomTTL = 10 * time.Minute
	// DefaultCapacity: комната рассчитана ровно на двоих.
	DefaultCapacity = 2
)

type Room struct {
	ID              string
	ConnectedTokens []string // порядок = порядок входа
	CreatedAt       time.Time
	RemainingTTL    time.Duration
}

func (r *Room) HasToken(token string) bool {
	return ContainsToken(r.ConnectedTokens, token)
}

// AdmissionKind: исход попытки входа в комнату.
type AdmissionKind int

const (
	AdmissionContinue AdmissionKind = iota
	AdmissionRoomNotFound
	AdmissionRoomFull
)

func (k AdmissionKind) String() string {
	switch k {
	case AdmissionContinue:
		return "continue"
	case AdmissionRoomNotFound:
		return "room-not-found"
	case AdmissionRoomFull:
		return "room-full"
	default:
		return "unknown"
	}
}

type Admission struct {
	Kind  AdmissionKind
	Token string
	// Issued: токен выдан только что (нужно поставить cookie).
	Issued bool
}

// AuthContext: результат успешной проверки (roomId, token).
type AuthContext struct {
	RoomID    string
	Token     string
	Connected []string
}
