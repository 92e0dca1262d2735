package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/lobbyhost/pkg/core"
)

func TestContext_StartOnce(t *testing.T) {
	ctx := NewContext()
	assert.False(t, ctx.Started())
	assert.Nil(t, ctx.Settings())

	var got []*core.GameSettings
	ctx.OnStart(func(gs *core.GameSettings) { got = append(got, gs) })

	gs := &core.GameSettings{GameUUID: "g"}
	now := time.Now()
	require.NoError(t, ctx.Start(gs, now))
	assert.True(t, ctx.Started())
	assert.Same(t, gs, ctx.Settings())
	assert.Equal(t, now, ctx.StartedAt())

	assert.ErrorIs(t, ctx.Start(&core.GameSettings{}, now), ErrAlreadyStarted)
	assert.Len(t, got, 1)
}
