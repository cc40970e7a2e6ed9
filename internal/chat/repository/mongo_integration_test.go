//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"
	testtool "realtime_chat_service/pkg/test_tool"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	mongoDB     *database.MongoDB
	redisClient *redis.Client
)

// **TestMain 啟動 MongoDB 與 Redis 容器**
func TestMain(m *testing.M) {
	ctx := context.Background()
	logger.SetNewNop()

	mongoContainer, mongoHost, mongoPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start MongoDB container: %v", err)
	}

	redisContainer, redisHost, redisPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start Redis container: %v", err)
	}

	mongoDB, err = database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort),
		RetryCount:    5,
		RetryInterval: 1,
	}, "test_chat_db")
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}

	redisClient, err = database.NewRedisStandalone(fmt.Sprintf("%s:%s", redisHost, redisPort), 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}

	code := m.Run()

	_ = redisClient.Close()
	mongoDB.Close(ctx)
	_ = mongoContainer.Terminate(ctx)
	_ = redisContainer.Terminate(ctx)
	os.Exit(code)
}

func TestMessageRepository_Mongo(t *testing.T) {
	ctx := context.Background()
	repo := NewMongoMessageRepository(mongoDB.Database)
	require.NoError(t, repo.EnsureIndexes(ctx))

	key := domain.PrivateChatKey("alice", "bob")
	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.Insert(ctx, &domain.Message{
			ID:        fmt.Sprintf("m%d", i),
			ChatKey:   key,
			From:      "alice",
			To:        "bob",
			Text:      fmt.Sprintf("msg %d", i),
			CreatedAt: int64(i * 1000),
			File:      &domain.FileAttachment{Name: "a.txt", Type: "text/plain", Size: 1, Data: "data:text/plain,a"},
			ReplyTo:   &domain.ReplyRef{MessageID: "m0"},
		}))
	}

	t.Run("history is oldest first", func(t *testing.T) {
		msgs, err := repo.FindHistory(ctx, key, domain.HistoryQuery{Limit: 3})
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, []string{"m3", "m4", "m5"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
		assert.Equal(t, key, msgs[0].ChatKey)

		msgs, err = repo.FindHistory(ctx, key, domain.HistoryQuery{Limit: 10, Before: 3000})
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "m1", msgs[0].ID)

		msgs, err = repo.FindHistory(ctx, "dm:nobody|x", domain.HistoryQuery{})
		require.NoError(t, err)
		assert.NotNil(t, msgs)
		assert.Empty(t, msgs)
	})

	t.Run("soft delete keeps a tombstone", func(t *testing.T) {
		msg, err := repo.SoftDelete(ctx, "m5")
		require.NoError(t, err)
		assert.True(t, msg.IsDeleted)
		assert.Equal(t, domain.TombstoneText, msg.Text)
		assert.Nil(t, msg.File)
		assert.Nil(t, msg.ReplyTo)

		last, err := repo.FindLastMessage(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "m5", last.ID)

		_, err = repo.SoftDelete(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("mark read", func(t *testing.T) {
		msg, err := repo.MarkRead(ctx, "m2")
		require.NoError(t, err)
		assert.True(t, msg.Read)

		stored, err := repo.FindByID(ctx, "m2")
		require.NoError(t, err)
		assert.True(t, stored.Read)
	})

	t.Run("empty chat has no last message", func(t *testing.T) {
		last, err := repo.FindLastMessage(ctx, "group:empty")
		require.NoError(t, err)
		assert.Nil(t, last)
	})
}

func TestGroupRepository_Mongo(t *testing.T) {
	ctx := context.Background()
	repo := NewMongoGroupRepository(mongoDB.Database)

	// 群組由外部服務建立, 這裡直接寫入
	_, err := mongoDB.Database.Collection(domain.GroupCollection).InsertMany(ctx, []interface{}{
		domain.Group{ID: "g2", Name: "Rust", Creator: "bob", Members: []string{"bob", "carol"}},
		domain.Group{ID: "g1", Name: "Go", Creator: "alice", Members: []string{"alice", "bob"}},
	})
	require.NoError(t, err)

	ids, err := repo.FindGroupIDsByMember(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, ids)

	ids, err = repo.FindGroupIDsByMember(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)

	g, err := repo.FindByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Go", g.Name)

	_, err = repo.FindByID(ctx, "g404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type frameCollector struct {
	mu     sync.Mutex
	frames []string
}

func (f *frameCollector) add(frame []byte) {
	f.mu.Lock()
	f.frames = append(f.frames, string(frame))
	f.mu.Unlock()
}

func (f *frameCollector) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func TestRedisTopicBroker_CrossInstance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var topicFrames, broadcastFrames frameCollector
	local := new(mockBroker)
	local.On("Publish", mock.Anything, domain.Topic("user:bob"), mock.Anything, []string{"c9"}).
		Run(func(args mock.Arguments) { topicFrames.add(args.Get(2).([]byte)) }).Return(nil)
	local.On("Broadcast", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { broadcastFrames.add(args.Get(1).([]byte)) }).Return(nil)

	receiver := NewRedisTopicBroker(redisClient, local)
	go func() { _ = receiver.Run(ctx) }()

	sender := NewRedisTopicBroker(redisClient, new(mockBroker))
	// 等待訂閱生效
	require.True(t, testtool.WaitFor(3*time.Second, func() bool {
		n, err := redisClient.PubSubNumPat(ctx).Result()
		return err == nil && n > 0
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, sender.Publish(ctx, domain.UserTopic("bob"), []byte(fmt.Sprintf(`{"n":%d}`, i)), "c9"))
	}
	require.NoError(t, sender.Broadcast(ctx, []byte(`{"event":"user_status_change"}`)))

	require.True(t, testtool.WaitFor(3*time.Second, func() bool {
		return len(topicFrames.list()) == 3 && len(broadcastFrames.list()) == 1
	}))
	assert.Equal(t, []string{`{"n":0}`, `{"n":1}`, `{"n":2}`}, topicFrames.list())
}
