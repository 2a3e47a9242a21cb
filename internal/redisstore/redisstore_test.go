package redisstore

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/burner-chat/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func createRoom(t *testing.T, repo *RoomRepository, id string) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.Room{ID: id}))
}

func TestRoomRepository_CreateAndGet(t *testing.T) {
	mr, db := newTestRedis(t)
	repo := NewRoomRepository(db, 0, 0)
	ctx := context.Background()

	room := &domain.Room{ID: "abc123"}
	require.NoError(t, repo.Create(ctx, room))
	assert.Equal(t, domain.DefaultRoomTTL, room.RemainingTTL)
	assert.Equal(t, domain.DefaultRoomTTL, mr.TTL(keysFor("abc123").Meta))

	got, err := repo.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Empty(t, got.ConnectedTokens)
	assert.Equal(t, room.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())
	assert.Equal(t, domain.DefaultRoomTTL, got.RemainingTTL)
}

func TestRoomRepository_GetMissing(t *testing.T) {
	_, db := newTestRedis(t)
	repo := NewRoomRepository(db, 0, 0)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomRepository_Admit(t *testing.T) {
	_, db := newTestRedis(t)
	repo := NewRoomRepository(db, 0, 0)
	ctx := context.Background()
	createRoom(t, repo, "r1")

	res, err := repo.Admit(ctx, "r1", "", "T1")
	require.NoError(t, err)
	assert.Equal(t, AdmitResult{Kind: domain.AdmissionContinue, Added: true, Connected: 1}, res)

	res, err = repo.Admit(ctx, "r1", "", "T2")
	require.NoError(t, err)
	assert.Equal(t, AdmitResult{Kind: domain.AdmissionContinue, Added: true, Connected: 2}, res)

	// третий не влезает и ничего не пишет
	res, err = repo.Admit(ctx, "r1", "", "T3")
	require.NoError(t, err)
	assert.Equal(t, domain.AdmissionRoomFull, res.Kind)
	assert.False(t, res.Added)

	// повторный вход участника
	res, err = repo.Admit(ctx, "r1", "T1", "T4")
	require.NoError(t, err)
	assert.Equal(t, domain.AdmissionContinue, res.Kind)
	assert.False(t, res.Added)

	room, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, room.ConnectedTokens)
}

func TestRoomRepository_AdmitMissingRoom(t *testing.T) {
	mr, db := newTestRedis(t)
	repo := NewRoomRepository(db, 0, 0)

	res, err := repo.Admit(context.Background(), "ghost", "", "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.AdmissionRoomNotFound, res.Kind)
	assert.False(t, mr.Exists(keysFor("ghost").Meta))
}

func TestRoomRepository_AdmitConcurrent(t *testing.T) {
	_, db := newTestRedis(t)
	repo := NewRoomRepository(db, 0, 0)
	ctx := context.Background()
	createRoom(t, repo, "race")

	const joiners = 32
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added []string
		full  int
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := "tok-" + strconv.Itoa(i)
			res, err := repo.Admit(ctx, "race", "", tok)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Added {
				added = append(added, tok)
			}
			if res.Kind == domain.AdmissionRoomFull {
				full++
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, added, domain.DefaultCapacity)
	assert.Equal(t, joiners-domain.DefaultCapacity, full)

	room, err := repo.Get(ctx, "race")
	require.NoError(t, err)
	assert.ElementsMatch(t, added, room.ConnectedTokens)
}

func TestRoomRepository_TTL(t *testing.T) {
	mr, db := newTestRedis(t)
	repo := NewRoomRepository(db, time.Minute, 2)
	ctx := context.Background()
	createRoom(t, repo, "r1")

	mr.FastForward(20 * time.Second)
	ttl, err := repo.TTL(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, ttl)

	ttl, err = repo.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, ttl)

	mr.FastForward(time.Minute)
	_, err = repo.Get(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomRepository_Delete(t *testing.T) {
	mr, db := newTestRedis(t)
	rooms := NewRoomRepository(db, 0, 0)
	msgs := NewMessageRepository(db)
	presence := NewPresenceRepository(db)
	ctx := context.Background()

	createRoom(t, rooms, "r1")
	require.NoError(t, msgs.Append(ctx, &domain.Message{ID: "m1", RoomID: "r1", Text: "hi"}))
	_, _, err := presence.Join(ctx, "r1", "conn-1")
	require.NoError(t, err)

	require.NoError(t, rooms.Delete(ctx, "r1"))
	for _, k := range keysFor("r1").all() {
		assert.False(t, mr.Exists(k), "key %s still exists", k)
	}

	require.NoError(t, rooms.Delete(ctx, "r1"))
}

func TestMessageRepository_AppendAndList(t *testing.T) {
	_, db := newTestRedis(t)
	rooms := NewRoomRepository(db, 0, 0)
	msgs := NewMessageRepository(db)
	ctx := context.Background()
	createRoom(t, rooms, "r1")

	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, msgs.Append(ctx, &domain.Message{ID: id, RoomID: "r1", Sender: "anon", Text: id, Token: "T1"}))
	}

	list, err := msgs.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "m1", list[0].ID)
	assert.Equal(t, "m3", list[2].ID)
	assert.Equal(t, "T1", list[0].Token)
}

func TestMessageRepository_AppendRoomGone(t *testing.T) {
	mr, db := newTestRedis(t)
	msgs := NewMessageRepository(db)

	err := msgs.Append(context.Background(), &domain.Message{ID: "m1", RoomID: "gone"})
	assert.ErrorIs(t, err, domain.ErrRoomGone)
	assert.False(t, mr.Exists(keysFor("gone").Messages))
}

func TestMessageRepository_AppendAlignsTTL(t *testing.T) {
	mr, db := newTestRedis(t)
	rooms := NewRoomRepository(db, 0, 0)
	msgs := NewMessageRepository(db)
	ctx := context.Background()
	createRoom(t, rooms, "r1")

	mr.FastForward(123 * time.Second)
	require.NoError(t, msgs.Append(ctx, &domain.Message{ID: "m1", RoomID: "r1"}))

	k := keysFor("r1")
	assert.Equal(t, mr.TTL(k.Meta), mr.TTL(k.Messages))
	assert.Equal(t, domain.DefaultRoomTTL-123*time.Second, mr.TTL(k.Messages))
}

func TestTTLSynchronizer_Sync(t *testing.T) {
	mr, db := newTestRedis(t)
	rooms := NewRoomRepository(db, 0, 0)
	syncer := NewTTLSynchronizer(db)
	ctx := context.Background()
	createRoom(t, rooms, "r1")

	k := keysFor("r1")
	// историю без expiry или с более длинным TTL выравниваем по meta
	require.NoError(t, db.RPush(ctx, k.Messages, "x").Err())
	require.NoError(t, db.Expire(ctx, k.Messages, time.Hour).Err())
	require.NoError(t, db.SAdd(ctx, k.Online, "c1").Err())

	mr.FastForward(10 * time.Second)
	ttl, err := syncer.Sync(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRoomTTL-10*time.Second, ttl)
	assert.Equal(t, mr.TTL(k.Meta), mr.TTL(k.Messages))
	assert.Equal(t, mr.TTL(k.Meta), mr.TTL(k.Online))
}

func TestTTLSynchronizer_SyncMissingRoom(t *testing.T) {
	_, db := newTestRedis(t)
	syncer := NewTTLSynchronizer(db)

	ttl, err := syncer.Sync(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestPresenceRepository(t *testing.T) {
	mr, db := newTestRedis(t)
	rooms := NewRoomRepository(db, 0, 0)
	presence := NewPresenceRepository(db)
	ctx := context.Background()
	createRoom(t, rooms, "r1")

	n, ok, err := presence.Join(ctx, "r1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, n)

	n, _, err = presence.Join(ctx, "r1", "c2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, mr.TTL(keysFor("r1").Meta), mr.TTL(keysFor("r1").Online))

	require.NoError(t, presence.Leave(ctx, "r1", "c1"))
	n, err = presence.Count(ctx, "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, ok, err = presence.Join(ctx, "missing", "c1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(keysFor("missing").Online))
}
