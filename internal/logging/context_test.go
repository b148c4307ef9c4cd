package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", ProcessID(ctx))
	assert.Equal(t, "", StageName(ctx))
	assert.Equal(t, "", OrgID(ctx))

	// Set values.
	ctx = WithProcessID(ctx, "proc-123")
	ctx = WithStageName(ctx, "lead_scoring")
	ctx = WithOrgID(ctx, "org-42")

	// Round-trip.
	assert.Equal(t, "proc-123", ProcessID(ctx))
	assert.Equal(t, "lead_scoring", StageName(ctx))
	assert.Equal(t, "org-42", OrgID(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	ctx = WithProcessID(ctx, "proc-abc")
	ctx = WithStageName(ctx, "initial_outreach")
	ctx = WithOrgID(ctx, "org-7")

	enriched := LogWith(ctx, logger)
	enriched.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "process_id=proc-abc")
	assert.Contains(t, output, "stage=initial_outreach")
	assert.Contains(t, output, "org_id=org-7")
	assert.Contains(t, output, "test message")
}

func TestLogWithMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Only the process ID is set; stage and org should not appear.
	ctx := WithProcessID(context.Background(), "proc-only")

	enriched := LogWith(ctx, logger)
	enriched.Info("partial context")

	output := buf.String()
	assert.Contains(t, output, "process_id=proc-only")
	assert.NotContains(t, output, "stage=")
	assert.NotContains(t, output, "org_id")
}

func TestLogWithEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// No correlation IDs, no extra attrs.
	enriched := LogWith(context.Background(), logger)
	enriched.Info("no context")

	output := buf.String()
	assert.NotContains(t, output, "process_id")
	assert.NotContains(t, output, "stage=")
	assert.NotContains(t, output, "org_id")
	assert.Contains(t, output, "no context")
}

func TestWithIDs(t *testing.T) {
	ctx := WithIDs(context.Background(), "proc-1", "data_preparation", "org-3")
	assert.Equal(t, "proc-1", ProcessID(ctx))
	assert.Equal(t, "data_preparation", StageName(ctx))
	assert.Equal(t, "org-3", OrgID(ctx))
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithIDs(context.Background(), "proc-auto", "follow_up", "org-auto")
	logger.InfoContext(ctx, "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"process_id":"proc-auto"`)
	assert.Contains(t, output, `"stage":"follow_up"`)
	assert.Contains(t, output, `"org_id":"org-auto"`)
	assert.Contains(t, output, "auto inject")
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	logger.InfoContext(context.Background(), "bare log")

	output := buf.String()
	assert.NotContains(t, output, "process_id")
	assert.NotContains(t, output, `"stage"`)
	assert.NotContains(t, output, "org_id")
	assert.Contains(t, output, "bare log")
}

func TestCorrelationHandlerPartialContext(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithProcessID(context.Background(), "proc-only")
	logger.InfoContext(ctx, "partial")

	output := buf.String()
	assert.Contains(t, output, `"process_id":"proc-only"`)
	assert.NotContains(t, output, `"stage"`)
	assert.NotContains(t, output, "org_id")
}

func TestCorrelationHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewCorrelationHandler(inner)
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "pipeline")}))

	ctx := WithProcessID(context.Background(), "proc-attr")
	logger.InfoContext(ctx, "with attrs")

	output := buf.String()
	assert.Contains(t, output, `"process_id":"proc-attr"`)
	assert.Contains(t, output, `"component":"pipeline"`)
}

func TestCorrelationHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewCorrelationHandler(inner)
	logger := slog.New(handler.WithGroup("pipeline"))

	ctx := WithProcessID(context.Background(), "proc-grp")
	logger.InfoContext(ctx, "grouped", "key", "val")

	output := buf.String()
	assert.Contains(t, output, "proc-grp")
	assert.Contains(t, output, "grouped")
}
