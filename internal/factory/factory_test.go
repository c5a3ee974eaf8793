package factory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/blazers/internal/dependencies/clock"
	"github.com/mcoot/blazers/internal/events"
	"github.com/mcoot/blazers/internal/services/auth"
	"github.com/mcoot/blazers/internal/services/session"
	"github.com/mcoot/blazers/internal/storage/memory"
	"github.com/mcoot/blazers/internal/testutil"
	"github.com/mcoot/blazers/internal/ws"
)

func TestCoordinatorLogsCarryOneComponent(t *testing.T) {
	logger, logs := testutil.CaptureLogger()
	authCfg := auth.DefaultConfig()
	authCfg.Token.Secret = TestJWTSecret
	app := newWithDependencies(memory.New(), clock.New(), &events.Recorder{}, authCfg, session.DefaultConfig(), ws.DefaultConfig(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Start(ctx)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		assert.NoError(t, app.Close(closeCtx))
	}()

	for msg, component := range map[string]string{
		"session coordinator started": `"component":"session"`,
		"lobby registry started":      `"component":"lobby"`,
	} {
		require.Eventually(t, func() bool { return len(logs.Lines(msg)) > 0 }, 2*time.Second, 10*time.Millisecond, msg)
		line := logs.Lines(msg)[0]
		assert.Equal(t, 1, strings.Count(line, `"component"`), line)
		assert.Contains(t, line, component)
	}
}
