package session

import (
	"context"
	"testing"
	"time"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(time.Minute, nil)
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	cfg := Config{Database: database.DefaultConfig(database.DialectSQLite, usersPath(t))}
	a, err := m.Start(context.Background(), cfg, Deps{LLM: &scriptedLLM{}})
	require.NoError(t, err)
	b, err := m.Start(context.Background(), cfg, Deps{LLM: &scriptedLLM{}})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, m.Len())

	got, err := m.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, m.Delete(context.Background(), a.ID()))
	_, err = m.Get(a.ID())
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, errs.IsNotFound(m.Delete(context.Background(), a.ID())))
	assert.Equal(t, 1, m.Len())

	// Deleted sessions are closed.
	_, err = a.Ask(context.Background(), "still there?")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestManager_StartInvalid(t *testing.T) {
	m := NewManager(0, nil)
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	_, err := m.Start(context.Background(), Config{}, Deps{LLM: &scriptedLLM{}})
	assert.True(t, errs.IsInvalidInput(err))
	assert.Equal(t, 0, m.Len())
}

func TestManager_ExpiresIdleSessions(t *testing.T) {
	m := NewManager(50*time.Millisecond, nil)
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	cfg := Config{Database: database.DefaultConfig(database.DialectSQLite, usersPath(t))}
	s, err := m.Start(context.Background(), cfg, Deps{LLM: &scriptedLLM{}})
	require.NoError(t, err)

	// Polling Get would keep the session alive, so watch the session itself.
	assert.Eventually(t, func() bool {
		_, err := s.Ask(context.Background(), "anyone?")
		return errs.IsInvalidInput(err)
	}, 2*time.Second, 20*time.Millisecond)

	_, err = m.Get(s.ID())
	assert.True(t, errs.IsNotFound(err))
}

func TestManager_CloseClosesAll(t *testing.T) {
	m := NewManager(time.Minute, nil)
	cfg := Config{Database: database.DefaultConfig(database.DialectSQLite, usersPath(t))}
	s, err := m.Start(context.Background(), cfg, Deps{LLM: &scriptedLLM{}})
	require.NoError(t, err)

	require.NoError(t, m.Close(context.Background()))
	assert.Equal(t, 0, m.Len())
	_, err = s.Ask(context.Background(), "hello")
	assert.True(t, errs.IsInvalidInput(err))
}
