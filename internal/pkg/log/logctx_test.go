package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Тесты меняют slog.Default(), поэтому t.Parallel() не используется.

func newSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withDefault(t *testing.T) *slog.Logger {
	t.Helper()

	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := newSilent()
	slog.SetDefault(def)
	return def
}

func TestFrom_Default(t *testing.T) {
	def := withDefault(t)

	require.Equal(t, def, From(context.Background()))

	// мусор под ключом и nil-логгер дают slog.Default().
	require.Equal(t, def, From(context.WithValue(context.Background(), ctxKey{}, "not-a-logger")))

	var nilLogger *slog.Logger
	require.Equal(t, def, From(context.WithValue(context.Background(), ctxKey{}, nilLogger)))
}

func TestInto_RoundTripAndShadowing(t *testing.T) {
	withDefault(t)

	parentL, childL := newSilent(), newSilent()

	parent := Into(context.Background(), parentL)
	child := Into(parent, childL)

	require.Equal(t, parentL, From(parent))
	require.Equal(t, childL, From(child))
}

func TestInto_PreservesValuesAndDeadline(t *testing.T) {
	type vk struct{}

	base, cancel := context.WithTimeout(context.WithValue(context.Background(), vk{}, "v"), time.Minute)
	defer cancel()

	ctx := Into(base, newSilent())
	require.Equal(t, "v", ctx.Value(vk{}))

	want, _ := base.Deadline()
	got, ok := ctx.Deadline()
	require.True(t, ok)
	require.Equal(t, want, got)

	cancel()
	<-ctx.Done()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWith_AddsAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := Into(context.Background(), base)
	ctx2 := With(ctx, slog.Int64("user_id", 42))

	From(ctx2).Info("probe")
	require.Contains(t, buf.String(), "user_id=42")

	buf.Reset()
	From(ctx).Info("probe")
	require.NotContains(t, buf.String(), "user_id", "родительский контекст не меняется")

	require.Equal(t, ctx, With(ctx))
}
