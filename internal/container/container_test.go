package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyfeedback/adapters/postgres"
	"studyfeedback/domain/result"
	"studyfeedback/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", URL: ":memory:"},
		Server:   config.ServerConfig{Port: "8080"},
		Notify:   config.NotifyConfig{CacheSize: 4, TTL: time.Minute},
		Render:   config.RenderConfig{Concurrency: 2},
	}
}

func TestContainer_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	c, err := New(cfg, nil)
	require.NoError(t, err)

	db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	require.NoError(t, err)
	require.NoError(t, c.InitWithDatabase(ctx, db))
	t.Cleanup(func() { _ = c.Shutdown(ctx) })

	for i, rt := range []float64{100, 300} {
		r := result.NewEnrichedResult("stroop", "p", result.ComponentResult{
			ParsedData: result.Sequence(result.Record{"rt": rt}),
		})
		at := time.Date(2024, 5, 1, 10, i, 0, 0, time.UTC)
		r.CompletedAt = &at
		require.NoError(t, c.ResultRepo.Save(ctx, r))
	}

	_, report, err := c.FeedbackService.SaveTemplate(ctx, "stroop", "You {{ var:rt }}, everyone {{ stat:rt.avg:across }}")
	require.NoError(t, err)
	assert.True(t, report.IsValid)

	out, err := c.FeedbackService.RenderStudy(ctx, "stroop")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "You 100, everyone 200", out[0].Markdown)
	assert.Equal(t, "You 300, everyone 200", out[1].Markdown)
}

func TestContainer_Errors(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Notify.CacheSize = 0
	_, err = New(cfg, nil)
	assert.Error(t, err)

	c, err := New(testConfig(), nil)
	require.NoError(t, err)
	assert.Error(t, c.InitWithDatabase(context.Background(), nil))
}
