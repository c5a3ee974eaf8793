package factory

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/blazers/internal/dependencies/mocks"
	"github.com/mcoot/blazers/internal/events"
	"github.com/mcoot/blazers/internal/services/auth"
	"github.com/mcoot/blazers/internal/services/session"
	"github.com/mcoot/blazers/internal/storage/memory"
	"github.com/mcoot/blazers/internal/ws"
)

// TestJWTSecret signs tokens issued by a TestApp
const TestJWTSecret = "test-secret"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	Events    *events.Recorder
}

// NewTestApp creates an App with in-memory storage, a mock clock and a
// recording event publisher. The admin username is "admin". Heartbeats
// are fast so socket tests observe them quickly.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	recorder := &events.Recorder{}

	authCfg := auth.DefaultConfig()
	authCfg.Token.Secret = TestJWTSecret
	authCfg.BcryptCost = bcrypt.MinCost
	authCfg.AdminUsernames = []string{"admin"}

	socketCfg := ws.DefaultConfig()
	socketCfg.HeartbeatInterval = 50 * time.Millisecond

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	app := newWithDependencies(store, mockClock, recorder, authCfg, session.DefaultConfig(), socketCfg, logger)

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		Events:    recorder,
	}
}

// Shutdown closes the app with a short deadline
func (t *TestApp) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.Close(ctx)
}
