package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogai/internal/app"
	"catalogai/internal/config"
	"catalogai/internal/testutils"
)

func TestBootstrap_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	ctx := context.Background()

	t.Run("Weaviate", func(t *testing.T) {
		deps, err := app.Bootstrap(ctx, suite.GetAppConfig())
		require.NoError(t, err)
		defer deps.Close(ctx)

		require.NoError(t, deps.DB.PingContext(ctx))
		count, err := deps.VectorStore.CountChunks(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.NotNil(t, deps.NSQProducer)
	})

	t.Run("Chromem", func(t *testing.T) {
		cfg := suite.GetAppConfig()
		cfg.VectorBackend = config.BackendChromem
		cfg.ChromemPath = t.TempDir()

		deps, err := app.Bootstrap(ctx, cfg)
		require.NoError(t, err)
		defer deps.Close(ctx)

		_, isEnsurer := deps.VectorStore.(app.SchemaEnsurer)
		assert.False(t, isEnsurer)
	})

	t.Run("Weaviate Down", func(t *testing.T) {
		cfg := suite.GetAppConfig()
		cfg.WeaviateHost = "localhost:54322"
		cfg.BootstrapRetryAttempts = 2

		start := time.Now()
		deps, err := app.Bootstrap(ctx, cfg)
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "weaviate schema error")
		assert.Greater(t, time.Since(start), time.Second)
	})
}
