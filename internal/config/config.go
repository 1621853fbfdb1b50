package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database  *dbConfig
	Service   *svcConfig
	Pipeline  *PipelineConfig
	Providers *ProvidersConfig
	S3        *S3Config
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"slidesmith"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"SLIDESMITH_ADDRESS" default:":8000"`
	MetricsAddress  string `envconfig:"SLIDESMITH_METRICS_ADDRESS" default:":8080"`
	LogLevel        string `envconfig:"SLIDESMITH_LOG_LEVEL" default:"info"`
	LogFormat       string `envconfig:"SLIDESMITH_LOG_FORMAT" default:"console"`
	UploadDir       string `envconfig:"SLIDESMITH_UPLOAD_DIR" default:"uploads"`
	OutputDir       string `envconfig:"SLIDESMITH_OUTPUT_DIR" default:"outputs"`
	MaxRowsPerJob   int    `envconfig:"SLIDESMITH_MAX_ROWS_PER_UPLOAD" default:"100"`
	MaxUploadBytes  int64  `envconfig:"SLIDESMITH_MAX_UPLOAD_BYTES" default:"10485760"`
	QueueMode       string `envconfig:"SLIDESMITH_QUEUE_MODE" default:"local"`
	Workers         int    `envconfig:"SLIDESMITH_WORKERS" default:"4"`
	MigrationFolder string `envconfig:"SLIDESMITH_MIGRATIONS_FOLDER" default:""`
	EventsEnabled   bool   `envconfig:"SLIDESMITH_EVENTS_ENABLED" default:"true"`
	EventsBuffer    int    `envconfig:"SLIDESMITH_EVENTS_BUFFER" default:"1000"`
	// AllowedOrigins is a comma separated list of CORS origins.
	AllowedOrigins []string      `envconfig:"SLIDESMITH_ALLOWED_ORIGINS" default:"*"`
	StatsInterval  time.Duration `envconfig:"SLIDESMITH_STATS_INTERVAL" default:"30s"`
	// HTTPLatencyBuckets are the upper bounds, in seconds, of the API request histogram.
	HTTPLatencyBuckets []float64 `envconfig:"SLIDESMITH_HTTP_LATENCY_BUCKETS" default:"0.005,0.025,0.1,0.25,0.5,1,2.5,5,10"`
}

// PipelineConfig holds the timing and retry knobs of the row pipeline.
type PipelineConfig struct {
	CoolDown          time.Duration `envconfig:"PIPELINE_COOL_DOWN" default:"2s"`
	RowRetries        int           `envconfig:"PIPELINE_ROW_RETRIES" default:"2"`
	RowBackoff        time.Duration `envconfig:"PIPELINE_ROW_BACKOFF" default:"10s"`
	AdapterAttempts   uint64        `envconfig:"PIPELINE_ADAPTER_ATTEMPTS" default:"3"`
	AdapterBackoff    time.Duration `envconfig:"PIPELINE_ADAPTER_BACKOFF" default:"1s"`
	AdapterMaxBackoff time.Duration `envconfig:"PIPELINE_ADAPTER_MAX_BACKOFF" default:"30s"`
	ResearchTimeout   time.Duration `envconfig:"PIPELINE_RESEARCH_TIMEOUT" default:"60s"`
	ContentTimeout    time.Duration `envconfig:"PIPELINE_CONTENT_TIMEOUT" default:"120s"`
	SubmitTimeout     time.Duration `envconfig:"PIPELINE_SUBMIT_TIMEOUT" default:"60s"`
	PollInterval      time.Duration `envconfig:"PIPELINE_POLL_INTERVAL" default:"5s"`
	PollMaxWait       time.Duration `envconfig:"PIPELINE_POLL_MAX_WAIT" default:"300s"`
	CacheTTL          time.Duration `envconfig:"PIPELINE_CACHE_TTL" default:"720h"`
	CatalogPath       string        `envconfig:"PIPELINE_CATALOG_PATH" default:"data/services.yaml"`
	TopServices       int           `envconfig:"PIPELINE_TOP_SERVICES" default:"5"`
}

type ProvidersConfig struct {
	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY" default:""`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	ResearchModel     string `envconfig:"OPENROUTER_RESEARCH_MODEL" default:"perplexity/sonar"`
	ContentModel      string `envconfig:"OPENROUTER_CONTENT_MODEL" default:"anthropic/claude-sonnet-4"`
	GammaAPIKey       string `envconfig:"GAMMA_API_KEY" default:""`
	GammaBaseURL      string `envconfig:"GAMMA_BASE_URL" default:"https://public-api.gamma.app/v1.0"`
	GammaThemeID      string `envconfig:"GAMMA_THEME_ID" default:""`
	GammaNumCards     int    `envconfig:"GAMMA_NUM_CARDS" default:"8"`
}

// S3Config enables uploading result workbooks to an S3 compatible bucket.
// Results stay on local disk when Endpoint is empty.
type S3Config struct {
	Endpoint  string `envconfig:"SLIDESMITH_S3_ENDPOINT" default:""`
	Bucket    string `envconfig:"SLIDESMITH_S3_BUCKET" default:"slidesmith"`
	AccessKey string `envconfig:"SLIDESMITH_S3_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"SLIDESMITH_S3_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"SLIDESMITH_S3_USE_SSL" default:"true"`
}

// New loads the configuration once. Values from envFile (or ".env" when
// present) are applied first without overriding variables already set.
func New(envFile string) (*Config, error) {
	if singleConfig == nil {
		if err := loadEnvFile(envFile); err != nil {
			return nil, err
		}
		cfg := NewDefault()
		if err := envconfig.Process("", cfg); err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

func loadEnvFile(envFile string) error {
	if envFile != "" {
		return godotenv.Load(envFile)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// NewDefault returns a fresh configuration built from defaults and the current environment.
func NewDefault() *Config {
	cfg := &Config{
		Database:  &dbConfig{},
		Service:   &svcConfig{},
		Pipeline:  &PipelineConfig{},
		Providers: &ProvidersConfig{},
		S3:        &S3Config{},
	}
	_ = envconfig.Process("", cfg)
	return cfg
}
