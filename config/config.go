package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// BackendMemory keeps vectors in process instead of the database.
const BackendMemory = "memory"

// Config holds application configuration
type Config struct {
	Database struct {
		Driver           string        `yaml:"driver"`
		ConnectionString string        `yaml:"connection_string"`
		SQLitePath       string        `yaml:"sqlite_path"`
		MaxConns         int           `yaml:"max_conns"`
		MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
		MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	} `yaml:"database"`
	Ollama struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"ollama"`
	Embeddings struct {
		TextModel string `yaml:"text_model"`
	} `yaml:"embeddings"`
	Generation struct {
		Provider  string        `yaml:"provider"`
		BaseURL   string        `yaml:"base_url"`
		Model     string        `yaml:"model"`
		APIKeyEnv string        `yaml:"api_key_env"`
		MaxTokens int           `yaml:"max_tokens"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"generation"`
	Processing struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
		TopK         int `yaml:"top_k"`
	} `yaml:"processing"`
	VectorStore struct {
		Backend string `yaml:"backend"`
	} `yaml:"vector_store"`
	Server struct {
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`
	Paths struct {
		UploadsDir string `yaml:"uploads_dir"`
	} `yaml:"paths"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Dir returns the directory holding the default config and data files.
func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".rag-lab")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load loads configuration from path, or DefaultPath when path is empty.
// A missing file yields the defaults. Variables from a .env file in the
// working directory and the process environment override file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RAG_LAB_DATABASE_URL"); v != "" {
		c.Database.Driver = DriverPostgres
		c.Database.ConnectionString = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := os.Getenv("CHAT_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("GENERATION_PROVIDER"); v != "" {
		c.Generation.Provider = v
	}
	if v := os.Getenv("RAG_LAB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// APIKey returns the generation API key. Without generation.api_key_env the
// provider's usual variable is read.
func (c *Config) APIKey() string {
	name := c.Generation.APIKeyEnv
	if name == "" {
		switch strings.ToLower(c.Generation.Provider) {
		case "anthropic":
			name = "ANTHROPIC_API_KEY"
		case "gemini":
			name = "GEMINI_API_KEY"
		default:
			name = "OLLAMA_API_KEY"
		}
	}
	return os.Getenv(name)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("database.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.ConnectionString == "" {
			return errors.New("database.connection_string is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.MaxConns < 0 || c.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database.max_conns out of range: %d", c.Database.MaxConns)
	}
	if c.Database.MaxConnLifetime < 0 || c.Database.MaxConnIdleTime < 0 {
		return errors.New("database connection lifetimes must not be negative")
	}

	switch c.VectorStore.Backend {
	case "", BackendMemory:
	default:
		return fmt.Errorf("unknown vector store backend %q", c.VectorStore.Backend)
	}

	switch strings.ToLower(c.Generation.Provider) {
	case "ollama", "anthropic", "gemini":
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}

	if c.Generation.MaxTokens < 0 || c.Generation.MaxTokens > math.MaxInt32 {
		return fmt.Errorf("generation.max_tokens out of range: %d", c.Generation.MaxTokens)
	}

	if c.Processing.ChunkSize <= 0 {
		return fmt.Errorf("processing.chunk_size must be positive, got %d", c.Processing.ChunkSize)
	}
	if c.Processing.ChunkOverlap < 0 {
		return fmt.Errorf("processing.chunk_overlap must not be negative, got %d", c.Processing.ChunkOverlap)
	}
	if c.Processing.TopK <= 0 {
		return fmt.Errorf("processing.top_k must be positive, got %d", c.Processing.TopK)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Save saves configuration to path, or DefaultPath when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}
	dir := Dir()

	cfg.Database.Driver = DriverSQLite
	cfg.Database.ConnectionString = "postgres://postgres@localhost/rag_lab?sslmode=disable"
	cfg.Database.SQLitePath = filepath.Join(dir, "rag-lab.db")
	cfg.Database.MaxConns = 10
	cfg.Database.MaxConnLifetime = time.Hour
	cfg.Database.MaxConnIdleTime = 30 * time.Minute
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.Timeout = 2 * time.Minute
	cfg.Embeddings.TextModel = "nomic-embed-text"
	cfg.Generation.Provider = "ollama"
	cfg.Generation.MaxTokens = 2048
	cfg.Generation.Timeout = 2 * time.Minute
	cfg.Processing.ChunkSize = 500
	cfg.Processing.ChunkOverlap = 50
	cfg.Processing.TopK = 5
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 3000
	cfg.Paths.UploadsDir = filepath.Join(dir, "uploads")
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	return cfg
}
