package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/CrewTrack/internal/models"
)

func TestCheckpointEvent_Terminal(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	ev := CheckpointEvent("j1", models.JobTypeDelivery, "s1", models.CheckpointRecord{Status: models.CheckpointCompleted, Timestamp: at})
	require.Equal(t, KindCheckpoint, ev.Kind)
	require.True(t, ev.Terminal)
	require.Equal(t, at, ev.Timestamp)

	ev = CheckpointEvent("j1", models.JobTypeMove, "s1", models.CheckpointRecord{Status: models.CheckpointLoading, Timestamp: at})
	require.False(t, ev.Terminal)
}

func TestDecodeLiveEvent(t *testing.T) {
	ev := LocationEvent("j1", models.JobTypeMove, "s1", 48.85, 2.35, time.Unix(1700000000, 0).UTC())
	b, err := ev.Encode()
	require.NoError(t, err)

	got, err := DecodeLiveEvent(b)
	require.NoError(t, err)
	require.Equal(t, ev, got)

	_, err = DecodeLiveEvent([]byte(`{"kind":"location"}`))
	require.Error(t, err)

	_, err = DecodeLiveEvent([]byte(`not json`))
	require.Error(t, err)
}
