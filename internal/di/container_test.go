package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1282saa/paperone/internal/config"
	"github.com/1282saa/paperone/internal/events"
	"github.com/1282saa/paperone/internal/generation"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.Store.Backend = config.StoreBadger
	cfg.Store.BadgerPath = filepath.Join(t.TempDir(), "badger")
	cfg.Blob.S3Bucket = "test-bucket"
	cfg.Auth.DevIdentity = true
	return cfg
}

func TestInitializeContainer(t *testing.T) {
	cfg := localConfig(t)
	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subjects", strings.NewReader(`{"name":"Biology"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ai/tutor/conversations", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"conversations":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "paperone_store_operations_total")
}

func TestApplyConfig(t *testing.T) {
	cfg := localConfig(t)
	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	next := *cfg
	next.LogLevel = "debug"
	next.Features.FallbackTables = false
	c.ApplyConfig(&next)

	assert.Equal(t, zap.DebugLevel, c.LogLevel.Level())
	assert.False(t, c.Fallback.Enabled())
}

func TestProvidePublisher(t *testing.T) {
	cfg := config.Default()
	_, ok := ProvidePublisher(cfg, awsConfigForTest(), zap.NewNop()).(events.NopPublisher)
	assert.True(t, ok)

	cfg.Events.Enabled = true
	_, ok = ProvidePublisher(cfg, awsConfigForTest(), zap.NewNop()).(*events.EventBridgePublisher)
	assert.True(t, ok)
}

func TestProvideMetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.MetricsEnabled = false
	assert.Nil(t, ProvideMetrics(cfg))
}

type generateOnly struct{ generation.Backend }

func TestProvideChatter(t *testing.T) {
	cfg := config.Default()
	backend := ProvideGenerationBackend(cfg, awsConfigForTest(), zap.NewNop())
	chatter, err := ProvideChatter(backend)
	require.NoError(t, err)
	assert.NotNil(t, chatter)

	_, err = ProvideChatter(generateOnly{backend})
	assert.Error(t, err)
}

func awsConfigForTest() aws.Config {
	return aws.Config{Region: "ap-northeast-2"}
}
