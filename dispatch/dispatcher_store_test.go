package dispatch_test

import (
	"context"
	"feedrelay/db"
	"feedrelay/dispatch"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownAfterSendDoesNotRedeliver(t *testing.T) {
	cfg := db.Config{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "feedrelay.db")}
	require.NoError(t, db.Migrate(cfg))
	store, err := db.Connect(context.Background(), cfg, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.RegisterDestination(context.Background(), "guild-1", "channel-1", []string{"zelda"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &fakeSender{onSend: cancel}
	d := dispatch.NewDispatcher(store, store, sender, nil, dispatch.Config{Concurrency: 2})

	require.NoError(t, d.Process(ctx, zeldaStory))

	delivered, err := store.HasBeenDelivered(context.Background(), "guild-1", zeldaStory.ID)
	require.NoError(t, err)
	assert.True(t, delivered)

	require.NoError(t, d.Process(context.Background(), zeldaStory))
	assert.Len(t, sender.channels(), 1)
}
