package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishLogsPayload(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	p := New(zap.New(core))

	id, err := p.Publish(context.Background(), "run-summaries", map[string]any{"run_id": "abc"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries := logs.FilterMessage("summary published").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "run-summaries", fields["topic"])
	require.Equal(t, id, fields["message_id"])
	require.Contains(t, fields["payload"].(string), "abc")
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	p := New(nil)

	_, err := p.Publish(context.Background(), "run-summaries", make(chan int))
	require.Error(t, err)
	require.Contains(t, err.Error(), "marshal payload")
}
