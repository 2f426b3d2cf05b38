package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"io"
	"sync"
	"testing"
	"time"

	"wodgachi/rewards-api/internal/config"
	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/events"
	"wodgachi/rewards-api/internal/repository"
	"wodgachi/rewards-api/internal/repository/memory"
	"wodgachi/rewards-api/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testWorkout = "test-workout"

type memObjectStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPuts int // number of upcoming PutJSON calls that fail
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (m *memObjectStorage) PutJSON(_ context.Context, key string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPuts > 0 {
		m.failPuts--
		return "", errors.New("storage unavailable")
	}
	m.objects[key] = b
	return "s3://test-bucket/" + key, nil
}

func (m *memObjectStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key + "?signature=x", nil
}

func (m *memObjectStorage) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *memObjectStorage) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

type fixture struct {
	*Services
	store   *memory.Store
	objects *memObjectStorage
	events  *events.Recorder
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	return newFixtureWithRepos(t, nil, mutate...)
}

// newFixtureWithRepos lets wrap swap repositories before the services are built.
func newFixtureWithRepos(t *testing.T, wrap func(*Repositories), mutate ...func(*Options)) *fixture {
	t.Helper()
	store := memory.NewStore()
	objects := newMemObjectStorage()
	recorder := &events.Recorder{}

	opts := Options{
		JWTSecret:     "test-secret",
		JWTExpiration: time.Hour,
		Storage:       objects,
		Publisher:     recorder,
		Logger:        quietLogger(),
	}
	for _, m := range mutate {
		m(&opts)
	}

	repos := Repositories{
		Users:       store.Users(),
		Profiles:    store.Profiles(),
		Ledger:      store.Ledger(),
		Workouts:    store.Workouts(),
		Oracle:      store.Oracle(),
		NFTs:        store.NFTs(),
		Redemptions: store.Redemptions(),
	}
	if wrap != nil {
		wrap(&repos)
	}
	svc := New(repos, opts)

	_, err := svc.Bootstrap(context.Background(), []config.SeedWorkout{
		{ID: testWorkout, Title: "Test Workout", Duration: 30, Difficulty: 2, Points: 150},
	})
	require.NoError(t, err)

	return &fixture{Services: svc, store: store, objects: objects, events: recorder}
}

// newPlayer creates an account and registers its profile.
func (f *fixture) newPlayer(t *testing.T, email string) primitive.ObjectID {
	t.Helper()
	ctx := context.Background()
	user, err := f.Auth.Register(ctx, "Test User", email, "password123", domain.RoleUser)
	require.NoError(t, err)
	_, _, err = f.Core.RegisterUser(ctx, user.ID, "Test User", "Test Creature")
	require.NoError(t, err)
	return user.ID
}

func (f *fixture) workouts(t *testing.T, user primitive.ObjectID, n int) *WorkoutResult {
	t.Helper()
	var last *WorkoutResult
	for i := 0; i < n; i++ {
		res, err := f.Core.SubmitWorkout(context.Background(), user, testWorkout, 30, 2)
		require.NoError(t, err)
		last = res
	}
	return last
}

func (f *fixture) balance(t *testing.T, addr domain.Address) int64 {
	t.Helper()
	b, err := f.Tokens.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	return domain.WholeCRUSH(b)
}

var errWriteTimeout = errors.New("write timeout")

// flakyLedger fails selected writes once per armed flag.
type flakyLedger struct {
	repository.LedgerRepository
	mu           sync.Mutex
	failOpen     bool
	failCreditTo domain.Address
	afterReward  func() // runs after RecordReward, standing in for a concurrent write
}

func (l *flakyLedger) OpenAccount(ctx context.Context, addr domain.Address, balance *big.Int) error {
	l.mu.Lock()
	fail := l.failOpen
	l.failOpen = false
	l.mu.Unlock()
	if fail {
		return errWriteTimeout
	}
	return l.LedgerRepository.OpenAccount(ctx, addr, balance)
}

func (l *flakyLedger) Credit(ctx context.Context, addr domain.Address, amount *big.Int) error {
	l.mu.Lock()
	fail := l.failCreditTo != "" && l.failCreditTo == addr
	if fail {
		l.failCreditTo = ""
	}
	l.mu.Unlock()
	if fail {
		return errWriteTimeout
	}
	return l.LedgerRepository.Credit(ctx, addr, amount)
}

func (l *flakyLedger) RecordReward(ctx context.Context, addr domain.Address, earned *big.Int, streak int, at time.Time) error {
	if err := l.LedgerRepository.RecordReward(ctx, addr, earned, streak, at); err != nil {
		return err
	}
	if l.afterReward != nil {
		l.afterReward()
	}
	return nil
}

// flakyNFTs fails the next failCreates Create calls.
type flakyNFTs struct {
	repository.NFTRepository
	mu          sync.Mutex
	failCreates int
}

func (n *flakyNFTs) Create(ctx context.Context, nft *domain.ProgressNFT) error {
	n.mu.Lock()
	fail := n.failCreates > 0
	if fail {
		n.failCreates--
	}
	n.mu.Unlock()
	if fail {
		return errWriteTimeout
	}
	return n.NFTRepository.Create(ctx, nft)
}
