package redisstore

// Фигурные скобки: hash tag для Redis Cluster: все ключи комнаты попадают в один слот,
// поэтому многоключевые скрипты и DEL остаются атомарными.
const (
	prefixMeta     = "meta:"
	prefixMessages = "messages:"
	prefixOnline   = "online:"
)

type roomKeys struct {
	Meta     string
	Messages string
	Online   string
}

func keysFor(roomID string) roomKeys {
	tag := "{" + roomID + "}"
	return roomKeys{
		Meta:     prefixMeta + tag,
		Messages: prefixMessages + tag,
		Online:   prefixOnline + tag,
	}
}

// siblings: ключи, чей TTL выравнивается по meta.
func (k roomKeys) siblings() []string {
	return []string{k.Messages, k.Online}
}

func (k roomKeys) all() []string {
	return []string{k.Meta, k.Messages, k.Online}
}
