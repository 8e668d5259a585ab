package di

import (
	"github.com/google/wire"
)

// ConfigProviders provides logging and cloud configuration.
var ConfigProviders = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideAWSConfig,
	ProvideMetrics,
	ProvideTracer,
)

// InfrastructureProviders provides storage, messaging and external clients.
var InfrastructureProviders = wire.NewSet(
	ProvideTables,
	ProvideSubjectRepository,
	ProvideDocumentRepository,
	ProvideConversationRepository,
	ProvidePublisher,
	ProvideGenerationBackend,
	ProvideChatter,
	ProvideFallback,
	ProvideBlobStore,
)

// ApplicationProviders provides the services.
var ApplicationProviders = wire.NewSet(
	ProvideSubjectService,
	ProvideDocumentService,
	ProvideTutorService,
	ProvideUploader,
)

// InterfaceProviders provides the HTTP surface.
var InterfaceProviders = wire.NewSet(
	ProvideErrorHandler,
	ProvideAuthMiddleware,
	ProvideReadinessChecks,
	ProvideRouter,
)

// SuperSet combines all provider sets for the complete application.
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	ApplicationProviders,
	InterfaceProviders,
	wire.Struct(new(Container), "*"),
)
