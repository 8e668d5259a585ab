// Package di assembles the application from configuration.
package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/1282saa/paperone/internal/auth"
	"github.com/1282saa/paperone/internal/blob"
	"github.com/1282saa/paperone/internal/config"
	"github.com/1282saa/paperone/internal/events"
	"github.com/1282saa/paperone/internal/generation"
	"github.com/1282saa/paperone/internal/handlers"
	"github.com/1282saa/paperone/internal/observability"
	"github.com/1282saa/paperone/internal/repository"
	"github.com/1282saa/paperone/internal/service/document"
	"github.com/1282saa/paperone/internal/service/subject"
	"github.com/1282saa/paperone/internal/service/tutor"
	"github.com/1282saa/paperone/internal/store"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/supabase-community/supabase-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const metricsNamespace = "paperone"

// ProvideLogLevel parses the configured level into a level that can be
// changed while the process runs.
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return level, nil
}

// ProvideLogger creates a JSON logger in production and a console logger
// elsewhere.
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = level
	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", string(cfg.Environment))), nil
}

// ProvideAWSConfig loads AWS credentials and the configured region.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
}

// ProvideMetrics returns nil when metrics are disabled; every consumer
// accepts a nil collector.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.Observability.MetricsEnabled {
		return nil
	}
	return observability.NewCollector(metricsNamespace)
}

// ProvideTracer returns the global tracer. It records nothing until
// InitTracing installs a provider.
func ProvideTracer() trace.Tracer {
	return observability.Tracer()
}

// Tables holds one store per table.
type Tables struct {
	Subjects      store.Store
	Documents     store.Store
	Conversations store.Store
}

// ProvideTables opens the configured store backend and decorates each table
// with tracing and metrics.
func ProvideTables(
	cfg *config.Config,
	awsCfg aws.Config,
	tracer trace.Tracer,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*Tables, func(), error) {
	subjectsDef := repository.SubjectsTable(cfg.Store.SubjectsTable, cfg.Store.UserIndex)
	documentsDef := repository.DocumentsTable(cfg.Store.DocumentsTable, cfg.Store.UserIndex, cfg.Store.SubjectIndex)
	conversationsDef := repository.ConversationsTable(cfg.Store.ConversationsTable, cfg.Store.UserIndex)

	var subjects, documents, conversations store.Store
	cleanup := func() {}

	switch cfg.Store.Backend {
	case config.StoreBadger:
		db, err := store.OpenBadger(store.BadgerOptions{Path: cfg.Store.BadgerPath})
		if err != nil {
			return nil, nil, err
		}
		subjects, documents, conversations = db.Table(subjectsDef), db.Table(documentsDef), db.Table(conversationsDef)
		cleanup = func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close badger", zap.Error(err))
			}
		}
		logger.Info("Using embedded badger store", zap.String("path", cfg.Store.BadgerPath))
	default:
		client := awsdynamodb.NewFromConfig(awsCfg)
		subjects = store.NewDynamoStore(client, subjectsDef)
		documents = store.NewDynamoStore(client, documentsDef)
		conversations = store.NewDynamoStore(client, conversationsDef)
	}

	return &Tables{
		Subjects:      store.NewTracedStore(subjects, subjectsDef.Name, tracer, metrics),
		Documents:     store.NewTracedStore(documents, documentsDef.Name, tracer, metrics),
		Conversations: store.NewTracedStore(conversations, conversationsDef.Name, tracer, metrics),
	}, cleanup, nil
}

func ProvideSubjectRepository(tables *Tables, cfg *config.Config, logger *zap.Logger) *repository.SubjectRepository {
	return repository.NewSubjectRepository(tables.Subjects, cfg.Store.UserIndex, logger)
}

func ProvideDocumentRepository(tables *Tables, cfg *config.Config, logger *zap.Logger) *repository.DocumentRepository {
	return repository.NewDocumentRepository(tables.Documents, cfg.Store.UserIndex, cfg.Store.SubjectIndex, logger)
}

func ProvideConversationRepository(tables *Tables, cfg *config.Config, logger *zap.Logger) *repository.ConversationRepository {
	return repository.NewConversationRepository(tables.Conversations, cfg.Store.UserIndex, logger)
}

// ProvidePublisher publishes to EventBridge when events are enabled.
func ProvidePublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) events.Publisher {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}
	}
	return events.NewEventBridgePublisher(awseventbridge.NewFromConfig(awsCfg), cfg.Events.BusName, logger)
}

// ProvideGenerationBackend calls Bedrock in its own region behind a circuit
// breaker.
func ProvideGenerationBackend(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) generation.Backend {
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.Bedrock.Region != "" {
			o.Region = cfg.Bedrock.Region
		}
	})
	bedrock := generation.NewBedrockBackend(client, generation.BedrockSettings{
		ModelID:     cfg.Bedrock.ModelID,
		ModelName:   cfg.Bedrock.ModelName,
		MaxTokens:   cfg.Bedrock.MaxTokens,
		Temperature: cfg.Bedrock.Temperature,
		TopP:        cfg.Bedrock.TopP,
	}, logger)
	return generation.NewBreakerBackend(bedrock, generation.DefaultBreakerConfig(), logger)
}

// ProvideChatter exposes the multi-turn side of the generation backend.
func ProvideChatter(backend generation.Backend) (generation.Chatter, error) {
	chatter, ok := backend.(generation.Chatter)
	if !ok {
		return nil, fmt.Errorf("generation backend %s does not support conversations", backend.ModelName())
	}
	return chatter, nil
}

func ProvideFallback(cfg *config.Config) *generation.TableFallback {
	return generation.NewTableFallback(cfg.Features.FallbackTables)
}

func ProvideSubjectService(
	subjects *repository.SubjectRepository,
	documents *repository.DocumentRepository,
	publisher events.Publisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *subject.Service {
	return subject.NewService(subjects, documents, publisher, metrics, logger)
}

func ProvideDocumentService(
	documents *repository.DocumentRepository,
	subjects *subject.Service,
	backend generation.Backend,
	fallback *generation.TableFallback,
	publisher events.Publisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *document.Service {
	return document.NewService(documents, subjects, backend, fallback, publisher, metrics, logger)
}

func ProvideTutorService(
	conversations *repository.ConversationRepository,
	chatter generation.Chatter,
	metrics *observability.Collector,
	logger *zap.Logger,
) *tutor.Service {
	return tutor.NewService(conversations, chatter, metrics, logger)
}

// ProvideBlobStore selects S3 or Supabase Storage.
func ProvideBlobStore(cfg *config.Config, awsCfg aws.Config) (blob.Store, error) {
	switch cfg.Blob.Backend {
	case config.BlobSupabase:
		client, err := supabase.NewClient(cfg.Blob.SupabaseURL, cfg.Blob.SupabaseKey, nil)
		if err != nil {
			return nil, fmt.Errorf("create supabase client: %w", err)
		}
		return blob.NewSupabaseStore(client.Storage, cfg.Blob.SupabaseBucket), nil
	default:
		return blob.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Blob.S3Bucket, awsCfg.Region), nil
	}
}

func ProvideUploader(cfg *config.Config, blobs blob.Store, logger *zap.Logger) (*blob.Uploader, error) {
	limit, err := cfg.Blob.MaxUploadBytes()
	if err != nil {
		return nil, fmt.Errorf("invalid upload size: %w", err)
	}
	return blob.NewUploader(blobs, limit, logger), nil
}

func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *appErrors.ErrorHandler {
	return appErrors.NewErrorHandler(logger, !cfg.IsProduction())
}

// ProvideAuthMiddleware verifies Cognito tokens when a pool is configured.
func ProvideAuthMiddleware(cfg *config.Config, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *auth.Middleware {
	mc := auth.MiddlewareConfig{
		DevEnabled: cfg.Auth.DevIdentity && !cfg.IsProduction(),
		DevUserID:  cfg.Auth.DevUserID,
	}
	if cfg.CognitoConfigured() {
		mc.Verifier = auth.NewCognitoVerifier(auth.CognitoConfig{
			Region:     cfg.Auth.CognitoRegion,
			UserPoolID: cfg.Auth.CognitoUserPoolID,
			ClientID:   cfg.Auth.CognitoClientID,
			CacheTTL:   cfg.Auth.JWKSCacheTTL,
			Logger:     logger,
		})
	}
	return auth.NewMiddleware(mc, errorHandler, logger)
}

// ProvideReadinessChecks pings the documents table with a lookup that is
// expected to miss.
func ProvideReadinessChecks(tables *Tables) []handlers.ReadinessCheck {
	return []handlers.ReadinessCheck{
		func(ctx context.Context) error {
			_, err := tables.Documents.Get(ctx, store.Key{PK: "READY", SK: "READY"})
			return err
		},
	}
}

func ProvideRouter(
	cfg *config.Config,
	subjects *subject.Service,
	documents *document.Service,
	tutors *tutor.Service,
	uploader *blob.Uploader,
	authMiddleware *auth.Middleware,
	metrics *observability.Collector,
	tracer trace.Tracer,
	ready []handlers.ReadinessCheck,
	errorHandler *appErrors.ErrorHandler,
	logger *zap.Logger,
) http.Handler {
	var t trace.Tracer
	if cfg.Observability.TracingEnabled {
		t = tracer
	}
	return handlers.NewRouter(handlers.RouterConfig{
		Version:        cfg.Version,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Subjects:       handlers.NewSubjectHandler(subjects, logger, errorHandler),
		Documents:      handlers.NewDocumentHandler(documents, logger, errorHandler),
		Uploads:        handlers.NewUploadHandler(uploader, logger, errorHandler),
		Tutor:          handlers.NewTutorHandler(tutors, logger, errorHandler),
		Auth:           authMiddleware,
		Metrics:        metrics,
		Tracer:         t,
		Ready:          ready,
	}, logger, errorHandler).Setup()
}
