package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Cover    CoverConfig    `mapstructure:"cover"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	Path   string `mapstructure:"path"`   // sqlite file path
	DSN    string `mapstructure:"dsn"`    // postgres DSN

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// QueueConfig configures the River work queue. The queue lives in Postgres
// even when the application database runs on sqlite.
type QueueConfig struct {
	DatabaseURL string `mapstructure:"database_url"`
	MaxWorkers  int    `mapstructure:"max_workers"`
}

type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // local | s3
	LocalDir  string `mapstructure:"local_dir"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// EngineConfig configures the primary inference engine sidecar. An empty
// BaseURL means the engine is unavailable and generation falls back to the
// placeholder synthesizer.
type EngineConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ModelDir     string        `mapstructure:"model_dir"`
	Device       string        `mapstructure:"device"`
	SampleRate   int           `mapstructure:"sample_rate"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type CoverConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

type JobsConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	StreamTimeout time.Duration `mapstructure:"stream_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("queue.database_url", "QUEUE_DATABASE_URL")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.secret_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.public_url", "S3_PUBLIC_BASE_URL")
	v.BindEnv("engine.base_url", "ACE_STEP_BASE_URL")
	v.BindEnv("engine.model_dir", "ACE_STEP_MODEL_DIR")
	v.BindEnv("engine.device", "ACE_STEP_DEVICE")
	v.BindEnv("cover.token", "HUGGINGFACE_HUB_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/songforge.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("queue.database_url", "postgres://localhost:5432/songforge")
	v.SetDefault("queue.max_workers", 1)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./data/files")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "songforge")
	v.SetDefault("engine.base_url", "")
	v.SetDefault("engine.model_dir", "./models/ace-step")
	v.SetDefault("engine.device", "cuda")
	v.SetDefault("engine.sample_rate", 44100)
	v.SetDefault("engine.poll_interval", 2*time.Second)
	v.SetDefault("engine.timeout", 10*time.Minute)
	v.SetDefault("cover.enabled", true)
	v.SetDefault("cover.model", "black-forest-labs/FLUX.1-schnell")
	v.SetDefault("cover.base_url", "https://api-inference.huggingface.co")
	v.SetDefault("jobs.ttl", time.Hour)
	v.SetDefault("jobs.poll_interval", time.Second)
	v.SetDefault("jobs.stream_timeout", 300*time.Second)
	v.SetDefault("jobs.sweep_interval", 10*time.Minute)
}
