// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreBadger   = "badger"

	BlobS3       = "s3"
	BlobSupabase = "supabase"
)

// Config holds every setting the service reads.
type Config struct {
	Environment Environment `yaml:"environment"`
	Version     string      `yaml:"version"`
	LogLevel    string      `yaml:"log_level"`

	Server        Server        `yaml:"server"`
	AWS           AWS           `yaml:"aws"`
	Store         Store         `yaml:"store"`
	Bedrock       Bedrock       `yaml:"bedrock"`
	Blob          Blob          `yaml:"blob"`
	Auth          Auth          `yaml:"auth"`
	Events        Events        `yaml:"events"`
	Observability Observability `yaml:"observability"`
	Features      Features      `yaml:"features"`

	// File is the YAML file this config was read from, if any.
	File string `yaml:"-"`
}

type Server struct {
	Address            string        `yaml:"address"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
}

type AWS struct {
	Region string `yaml:"region"`
}

type Store struct {
	Backend            string `yaml:"backend"`
	BadgerPath         string `yaml:"badger_path"`
	SubjectsTable      string `yaml:"subjects_table"`
	DocumentsTable     string `yaml:"documents_table"`
	ConversationsTable string `yaml:"conversations_table"`
	UserIndex          string `yaml:"user_index"`
	SubjectIndex       string `yaml:"subject_index"`
}

type Bedrock struct {
	Region      string  `yaml:"region"`
	ModelID     string  `yaml:"model_id"`
	ModelName   string  `yaml:"model_name"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
}

type Blob struct {
	Backend        string `yaml:"backend"`
	S3Bucket       string `yaml:"s3_bucket"`
	SupabaseURL    string `yaml:"supabase_url"`
	SupabaseKey    string `yaml:"supabase_service_role_key"`
	SupabaseBucket string `yaml:"supabase_bucket"`
	// MaxUploadSize is a human readable size such as "10MiB".
	MaxUploadSize string `yaml:"max_upload_size"`
}

// MaxUploadBytes parses MaxUploadSize.
func (b Blob) MaxUploadBytes() (int64, error) {
	return units.RAMInBytes(b.MaxUploadSize)
}

type Auth struct {
	CognitoRegion     string        `yaml:"cognito_region"`
	CognitoUserPoolID string        `yaml:"cognito_user_pool_id"`
	CognitoClientID   string        `yaml:"cognito_client_id"`
	JWKSCacheTTL      time.Duration `yaml:"jwks_cache_ttl"`
	DevIdentity       bool          `yaml:"dev_identity_enabled"`
	DevUserID         string        `yaml:"dev_user_id"`
}

type Events struct {
	Enabled bool   `yaml:"enabled"`
	BusName string `yaml:"bus_name"`
}

type Observability struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

type Features struct {
	FallbackTables bool `yaml:"fallback_tables_enabled"`
}

// Default returns the configuration used before any file or variable is read.
func Default() *Config {
	return &Config{
		Environment: Development,
		Version:     "1.0.0",
		LogLevel:    "info",
		Server: Server{
			Address:            ":8080",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       5 * time.Minute,
			ShutdownTimeout:    30 * time.Second,
			CORSAllowedOrigins: []string{"*"},
		},
		AWS: AWS{Region: "ap-northeast-2"},
		Store: Store{
			Backend:            StoreDynamoDB,
			BadgerPath:         "./data/badger",
			SubjectsTable:      "paperone-subjects",
			DocumentsTable:     "paperone-documents",
			ConversationsTable: "paperone-conversations",
			UserIndex:          "UserIndex",
			SubjectIndex:       "SubjectIndex",
		},
		Bedrock: Bedrock{
			Region:      "us-east-1",
			ModelID:     "anthropic.claude-3-haiku-20240307-v1:0",
			ModelName:   "claude-3-haiku",
			MaxTokens:   4000,
			Temperature: 0.1,
			TopP:        0.9,
		},
		Blob: Blob{
			Backend:        BlobS3,
			SupabaseBucket: "images",
			MaxUploadSize:  "10MiB",
		},
		Auth: Auth{
			JWKSCacheTTL: time.Hour,
			DevUserID:    "test-user-001",
		},
		Events: Events{BusName: "default"},
		Observability: Observability{
			MetricsEnabled: true,
			OTLPEndpoint:   "localhost:4317",
		},
		Features: Features{FallbackTables: true},
	}
}

// Load builds the configuration. path may be empty, in which case
// CONFIG_FILE is consulted; a missing file is an error only when named
// explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if !(errors.Is(err, os.ErrNotExist) && !explicit) {
				return nil, err
			}
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.File = path
	return nil
}

func (c *Config) loadEnv() {
	c.Environment = Environment(getEnv("ENVIRONMENT", string(c.Environment)))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Version = getEnv("APP_VERSION", c.Version)

	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.Server.CORSAllowedOrigins = splitList(origins)
	}

	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)
	c.AWS.Region = getEnv("APP_AWS_REGION", c.AWS.Region)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.BadgerPath = getEnv("BADGER_PATH", c.Store.BadgerPath)
	c.Store.SubjectsTable = getEnv("SUBJECTS_TABLE", c.Store.SubjectsTable)
	c.Store.DocumentsTable = getEnv("DOCUMENTS_TABLE", c.Store.DocumentsTable)
	c.Store.ConversationsTable = getEnv("CONVERSATIONS_TABLE", c.Store.ConversationsTable)
	c.Store.UserIndex = getEnv("USER_INDEX", c.Store.UserIndex)
	c.Store.SubjectIndex = getEnv("SUBJECT_INDEX", c.Store.SubjectIndex)

	c.Bedrock.Region = getEnv("BEDROCK_REGION", c.Bedrock.Region)
	c.Bedrock.ModelID = getEnv("BEDROCK_MODEL_ID", c.Bedrock.ModelID)
	c.Bedrock.MaxTokens = getEnvInt("BEDROCK_MAX_TOKENS", c.Bedrock.MaxTokens)
	c.Bedrock.Temperature = getEnvFloat("BEDROCK_TEMPERATURE", c.Bedrock.Temperature)
	c.Bedrock.TopP = getEnvFloat("BEDROCK_TOP_P", c.Bedrock.TopP)

	c.Blob.Backend = getEnv("BLOB_BACKEND", c.Blob.Backend)
	c.Blob.S3Bucket = getEnv("S3_BUCKET", c.Blob.S3Bucket)
	c.Blob.SupabaseURL = getEnv("SUPABASE_URL", c.Blob.SupabaseURL)
	c.Blob.SupabaseKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.Blob.SupabaseKey)
	c.Blob.SupabaseBucket = getEnv("SUPABASE_BUCKET", c.Blob.SupabaseBucket)
	c.Blob.MaxUploadSize = getEnv("UPLOAD_MAX_SIZE", c.Blob.MaxUploadSize)

	c.Auth.CognitoUserPoolID = getEnv("COGNITO_USER_POOL_ID", c.Auth.CognitoUserPoolID)
	c.Auth.CognitoClientID = getEnv("COGNITO_CLIENT_ID", c.Auth.CognitoClientID)
	c.Auth.CognitoRegion = getEnv("COGNITO_REGION", c.Auth.CognitoRegion)
	c.Auth.JWKSCacheTTL = getEnvDuration("JWKS_CACHE_TTL", c.Auth.JWKSCacheTTL)
	c.Auth.DevIdentity = getEnvBool("DEV_IDENTITY_ENABLED", c.Auth.DevIdentity)
	c.Auth.DevUserID = getEnv("DEV_USER_ID", c.Auth.DevUserID)
	if c.Auth.CognitoRegion == "" {
		c.Auth.CognitoRegion = c.AWS.Region
	}

	c.Events.Enabled = getEnvBool("ENABLE_EVENTS", c.Events.Enabled)
	c.Events.BusName = getEnv("EVENT_BUS_NAME", c.Events.BusName)

	c.Observability.MetricsEnabled = getEnvBool("ENABLE_METRICS", c.Observability.MetricsEnabled)
	c.Observability.TracingEnabled = getEnvBool("ENABLE_TRACING", c.Observability.TracingEnabled)
	c.Observability.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.Observability.OTLPEndpoint)

	c.Features.FallbackTables = getEnvBool("FALLBACK_TABLES_ENABLED", c.Features.FallbackTables)
}

// Validate checks the settings the selected backends require.
func (c *Config) Validate() error {
	var problems []string

	switch c.Environment {
	case Development, Staging, Production:
	default:
		problems = append(problems, fmt.Sprintf("unknown environment %q", c.Environment))
	}

	switch c.Store.Backend {
	case StoreDynamoDB:
		if c.Store.SubjectsTable == "" || c.Store.DocumentsTable == "" || c.Store.ConversationsTable == "" {
			problems = append(problems, "subjects, documents and conversations tables are required")
		}
	case StoreBadger:
		if c.Environment == Production {
			problems = append(problems, "badger store is not supported in production")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.UserIndex == "" || c.Store.SubjectIndex == "" {
		problems = append(problems, "index names are required")
	}

	switch c.Blob.Backend {
	case BlobS3:
		if c.Environment == Production && c.Blob.S3Bucket == "" {
			problems = append(problems, "S3_BUCKET is required")
		}
	case BlobSupabase:
		if c.Blob.SupabaseURL == "" || c.Blob.SupabaseKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown blob backend %q", c.Blob.Backend))
	}
	if size, err := c.Blob.MaxUploadBytes(); err != nil || size <= 0 {
		problems = append(problems, fmt.Sprintf("invalid upload size %q", c.Blob.MaxUploadSize))
	}

	if c.Auth.DevIdentity && c.Environment == Production {
		problems = append(problems, "development identity cannot be enabled in production")
	}
	if !c.Auth.DevIdentity && (c.Auth.CognitoUserPoolID == "" || c.Auth.CognitoClientID == "") {
		if c.Environment == Production {
			problems = append(problems, "COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID are required")
		}
	}

	if c.Bedrock.MaxTokens <= 0 {
		problems = append(problems, "bedrock max tokens must be positive")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// CognitoConfigured reports whether bearer tokens can be verified.
func (c *Config) CognitoConfigured() bool {
	return c.Auth.CognitoUserPoolID != "" && c.Auth.CognitoClientID != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
