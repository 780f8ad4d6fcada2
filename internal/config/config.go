package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Vision      VisionConfig      `yaml:"vision"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Access      AccessConfig      `yaml:"access"`
	Gallery     GalleryConfig     `yaml:"gallery"`
	Terminal    TerminalConfig    `yaml:"terminal"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	APIKey      string `yaml:"api_key"`
	AdminSecret string `yaml:"admin_secret"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	EmbeddingDim       int     `yaml:"embedding_dim"`
}

// RecognitionMode selects how a terminal consumes verdicts.
type RecognitionMode string

const (
	ModeAttempt    RecognitionMode = "attempt"
	ModeContinuous RecognitionMode = "continuous"
)

type RecognitionConfig struct {
	Threshold      float64         `yaml:"threshold"`
	AttemptTimeout time.Duration   `yaml:"attempt_timeout"`
	Cooldown       time.Duration   `yaml:"cooldown"`
	FrameInterval  time.Duration   `yaml:"frame_interval"`
	Mode           RecognitionMode `yaml:"mode"`
}

type AccessConfig struct {
	AdminLevel int    `yaml:"admin_level"`
	Timezone   string `yaml:"timezone"`
}

// Location resolves Timezone, falling back to the local zone when unset.
func (a AccessConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// GallerySource names where enrolled embeddings are loaded from at startup.
type GallerySource string

const (
	GalleryFromDir      GallerySource = "dir"
	GalleryFromMinIO    GallerySource = "minio"
	GalleryFromPostgres GallerySource = "postgres"
)

type GalleryConfig struct {
	Source GallerySource `yaml:"source"`
	Dir    string        `yaml:"dir"`
}

type TerminalConfig struct {
	Room   string `yaml:"room"`
	Camera string `yaml:"camera"`
	Width  int    `yaml:"width"`
	FPS    int    `yaml:"fps"`
	Port   int    `yaml:"port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// A .env file in the working directory, if present, is loaded into the
// environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML config bytes, then applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Recognition.Mode {
	case ModeAttempt, ModeContinuous:
	default:
		return fmt.Errorf("invalid recognition mode %q", c.Recognition.Mode)
	}
	switch c.Gallery.Source {
	case GalleryFromDir, GalleryFromMinIO, GalleryFromPostgres:
	default:
		return fmt.Errorf("invalid gallery source %q", c.Gallery.Source)
	}
	if c.Recognition.Threshold < 0 {
		return fmt.Errorf("recognition threshold must be non-negative, got %v", c.Recognition.Threshold)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "roomgate"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.EmbeddingDim == 0 {
		cfg.Vision.EmbeddingDim = 512
	}
	if cfg.Recognition.Threshold == 0 {
		cfg.Recognition.Threshold = 1.07
	}
	if cfg.Recognition.AttemptTimeout == 0 {
		cfg.Recognition.AttemptTimeout = 3 * time.Second
	}
	if cfg.Recognition.Cooldown == 0 {
		cfg.Recognition.Cooldown = 30 * time.Second
	}
	if cfg.Recognition.FrameInterval == 0 {
		cfg.Recognition.FrameInterval = 30 * time.Millisecond
	}
	if cfg.Recognition.Mode == "" {
		cfg.Recognition.Mode = ModeAttempt
	}
	if cfg.Access.AdminLevel == 0 {
		cfg.Access.AdminLevel = 3
	}
	if cfg.Gallery.Source == "" {
		cfg.Gallery.Source = GalleryFromDir
	}
	if cfg.Gallery.Dir == "" {
		cfg.Gallery.Dir = "embeddings"
	}
	if cfg.Terminal.Width == 0 {
		cfg.Terminal.Width = 640
	}
	if cfg.Terminal.FPS == 0 {
		cfg.Terminal.FPS = 30
	}
	if cfg.Terminal.Port == 0 {
		cfg.Terminal.Port = 8081
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RG_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("RG_ADMIN_SECRET"); v != "" {
		cfg.Server.AdminSecret = v
	}
	if v := os.Getenv("RG_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("RG_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("RG_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("RG_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("RG_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("RG_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("RG_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("RG_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("RG_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("RG_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("RG_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("RG_RECOGNITION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.Threshold = f
		}
	}
	if v := os.Getenv("RG_RECOGNITION_MODE"); v != "" {
		cfg.Recognition.Mode = RecognitionMode(v)
	}
	if v := os.Getenv("RG_GALLERY_SOURCE"); v != "" {
		cfg.Gallery.Source = GallerySource(v)
	}
	if v := os.Getenv("RG_GALLERY_DIR"); v != "" {
		cfg.Gallery.Dir = v
	}
	if v := os.Getenv("RG_TERMINAL_ROOM"); v != "" {
		cfg.Terminal.Room = v
	}
	if v := os.Getenv("RG_TERMINAL_CAMERA"); v != "" {
		cfg.Terminal.Camera = v
	}
	if v := os.Getenv("RG_TIMEZONE"); v != "" {
		cfg.Access.Timezone = v
	}
}
