package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/etnz/valuation"
	"github.com/stretchr/testify/require"
)

func writeModel(t *testing.T, file string, s valuation.Snapshot) {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, data, 0o644))
}

func TestWatchReloads(t *testing.T) {
	file := filepath.Join(t.TempDir(), "model.json")
	writeModel(t, file, valuation.DefaultModel())

	e := valuation.NewEditor(valuation.DefaultModel())
	var reloads atomic.Int32
	cancelSub := e.Subscribe(func(ev valuation.Event) {
		if ev.Kind == valuation.Reloaded {
			reloads.Add(1)
		}
	})
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, file, e, slog.New(slog.NewTextHandler(io.Discard, nil))) }()

	// the watcher needs a moment to register.
	time.Sleep(100 * time.Millisecond)

	changed, err := valuation.Merge(valuation.DefaultModel(), valuation.FieldSet{
		Path:  valuation.P("company_name"),
		Value: valuation.String("Reloaded Co"),
	})
	require.NoError(t, err)
	writeModel(t, file, changed)

	require.Eventually(t, func() bool { return reloads.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	name, _ := e.Present().Text(valuation.P("company_name"))
	require.Equal(t, "Reloaded Co", name)
	require.False(t, e.CanUndo())

	// garbage is ignored.
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o644))
	time.Sleep(2 * reloadDelay)
	require.Equal(t, int32(1), reloads.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
