package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/burner-chat/internal/broadcast"
	"github.com/cwrk-planet/burner-chat/internal/domain"
	"github.com/cwrk-planet/burner-chat/internal/redisstore"
	"github.com/cwrk-planet/burner-chat/internal/security"
	"github.com/cwrk-planet/burner-chat/internal/service"
	transport "github.com/cwrk-planet/burner-chat/internal/transport/http"
	httpmw "github.com/cwrk-planet/burner-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/burner-chat/internal/transport/ws"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookieName = "x-auth-token"

type env struct {
	mr     *miniredis.Miniredis
	router http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	db := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = db.Close() })

	rooms := redisstore.NewRoomRepository(db, domain.DefaultRoomTTL, domain.DefaultCapacity)
	ttl := redisstore.NewTTLSynchronizer(db)
	ids := security.MustIDGenerator(security.DefaultIDLength)
	bus := broadcast.NewRedisBus(db)

	roomSvc := service.NewRoomService(rooms, ttl, bus, ids)
	memberSvc := service.NewMemberService(rooms, redisstore.NewPresenceRepository(db), ttl)
	chatSvc := service.NewChatService(redisstore.NewMessageRepository(db), ttl, bus, ids)

	h := transport.NewHandler(roomSvc, memberSvc, chatSvc, transport.Config{
		Cookie:      httpmw.SessionCookie{Name: cookieName},
		LandingPath: "/",
	})
	wsServer := ws.NewServer(ws.NewHub(bus), memberSvc, bus, nil)

	return &env{mr: mr, router: transport.NewRouter(h, memberSvc, wsServer, transport.RouterConfig{})}
}

func (e *env) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) createRoom(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/room/create", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out transport.CreateRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.RoomID)
	return out.RoomID
}

// enter проходит через /room/{id} и возвращает выданный токен.
func (e *env) enter(t *testing.T, roomID string) string {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/room/"+roomID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c.Value
		}
	}
	t.Fatal("session cookie not set")
	return ""
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Message
}

func TestEnterRoom(t *testing.T) {
	e := newEnv(t)
	roomID := e.createRoom(t)

	rec := e.do(t, http.MethodGet, "/room/"+roomID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, cookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.NotEmpty(t, c.Value)

	var out transport.CreateRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, roomID, out.RoomID)

	t.Run("rejoin keeps the cookie", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/room/"+roomID, c.Value, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("third visitor is redirected", func(t *testing.T) {
		e.enter(t, roomID)
		rec := e.do(t, http.MethodGet, "/room/"+roomID, "", "")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/?error=room-full", rec.Header().Get("Location"))
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("unknown room", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/room/nope", "", "")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/?error=room-not-found", rec.Header().Get("Location"))
	})

	t.Run("nested paths", func(t *testing.T) {
		for _, p := range []string{"/room/" + roomID + "/extra", "/room/", "/room"} {
			rec := e.do(t, http.MethodGet, p, "", "")
			assert.Equal(t, http.StatusFound, rec.Code, p)
			assert.Equal(t, "/", rec.Header().Get("Location"), p)
		}
	})
}

func TestAPI_RequiresMembership(t *testing.T) {
	e := newEnv(t)
	roomID := e.createRoom(t)
	token := e.enter(t, roomID)

	other := e.createRoom(t)
	foreign := e.enter(t, other)

	tests := []struct {
		name   string
		target string
		token  string
	}{
		{name: "no cookie", target: "/api/room/ttl?roomId=" + roomID},
		{name: "no room", target: "/api/room/ttl", token: token},
		{name: "foreign token", target: "/api/room/ttl?roomId=" + roomID, token: foreign},
		{name: "garbage token", target: "/api/messages?roomId=" + roomID, token: "garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, tt.target, tt.token, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeError(t, rec))
		})
	}

	t.Run("expired room", func(t *testing.T) {
		e.mr.FastForward(domain.DefaultRoomTTL + time.Second)
		rec := e.do(t, http.MethodGet, "/api/room/ttl?roomId="+roomID, token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAPI_TTL(t *testing.T) {
	e := newEnv(t)
	roomID := e.createRoom(t)
	token := e.enter(t, roomID)
	e.mr.FastForward(10 * time.Second)

	rec := e.do(t, http.MethodGet, "/api/room/ttl?roomId="+roomID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out transport.TTLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, int64(590), out.TTL)
}

func TestAPI_Messages(t *testing.T) {
	e := newEnv(t)
	roomID := e.createRoom(t)
	alice := e.enter(t, roomID)
	bob := e.enter(t, roomID)
	target := "/api/messages?roomId=" + roomID

	rec := e.do(t, http.MethodPost, target, alice, `{"sender":"anon-wolf","text":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var posted transport.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posted))
	assert.Equal(t, "hi", posted.Message.Text)
	assert.Equal(t, roomID, posted.Message.RoomID)
	assert.Equal(t, alice, posted.Message.Token)

	rec = e.do(t, http.MethodPost, target, bob, `{"sender":"anon-fox","text":"hey"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, target, bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list transport.MessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Messages, 2)
	assert.Equal(t, "hi", list.Messages[0].Text)
	assert.Empty(t, list.Messages[0].Token)
	assert.Equal(t, bob, list.Messages[1].Token)
	assert.NotContains(t, rec.Body.String(), alice)

	t.Run("validation", func(t *testing.T) {
		cases := map[string]string{
			"invalid json": `{"sender":`,
			"empty sender": `{"sender":"","text":"x"}`,
			"empty text":   `{"sender":"a","text":""}`,
			"long sender":  `{"sender":"` + strings.Repeat("я", domain.MaxSenderLen+1) + `","text":"x"}`,
			"long text":    `{"sender":"a","text":"` + strings.Repeat("x", domain.MaxTextLen+1) + `"}`,
		}
		for name, body := range cases {
			rec := e.do(t, http.MethodPost, target, alice, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		}

		rec := e.do(t, http.MethodPost, target, alice,
			`{"sender":"`+strings.Repeat("я", domain.MaxSenderLen)+`","text":"ok"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestAPI_DeleteRoom(t *testing.T) {
	e := newEnv(t)
	roomID := e.createRoom(t)
	token := e.enter(t, roomID)
	rec := e.do(t, http.MethodPost, "/api/messages?roomId="+roomID, token, `{"sender":"a","text":"bye"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/room?roomId="+roomID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out transport.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "destroyed", out.Status)

	assert.False(t, e.mr.Exists("meta:{"+roomID+"}"))
	assert.False(t, e.mr.Exists("messages:{"+roomID+"}"))

	rec = e.do(t, http.MethodGet, "/api/messages?roomId="+roomID, token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRealtime(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	roomID := e.createRoom(t)
	alice := e.enter(t, roomID)
	bob := e.enter(t, roomID)

	header := http.Header{}
	header.Add("Cookie", (&http.Cookie{Name: cookieName, Value: bob}).String())
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime?roomId=" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	state := readUntil(t, conn, ws.TypeState)
	assert.Equal(t, roomID, state["roomId"])
	assert.EqualValues(t, 1, state["online"])

	rec := e.do(t, http.MethodGet, "/api/room/presence?roomId="+roomID, alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"online":1}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/messages?roomId="+roomID, alice, `{"sender":"anon-wolf","text":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	msg := readUntil(t, conn, ws.TypeMessage)
	assert.Equal(t, "hi", msg["text"])
	assert.Equal(t, "anon-wolf", msg["sender"])
	assert.NotContains(t, msg, "token")

	rec = e.do(t, http.MethodDelete, "/api/room?roomId="+roomID, alice, "")
	require.Equal(t, http.StatusOK, rec.Code)

	destroy := readUntil(t, conn, ws.TypeDestroy)
	assert.Equal(t, true, destroy["isDestroyed"])

	// после destroy сервер закрывает соединение
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestRealtime_Unauthorized(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)
	roomID := e.createRoom(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime?roomId=" + roomID
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var frame struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == typ {
			return frame.Payload
		}
	}
}
