package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docproof/internal/report"
)

// EnvConfigPath names the variable holding the YAML config file path.
const EnvConfigPath = "DOCPROOF_CONFIG"

const (
	DefaultModel          = "llama3.2:3b"
	DefaultOutput         = "errores_hibrido.txt"
	DefaultLTDownloadURL  = "https://languagetool.org/download/LanguageTool-stable.zip"
	defaultMaxUploadBytes = 52428800 // 50MB
)

// Config is built once at process start and passed down explicitly.
type Config struct {
	Ollama       OllamaConfig       `yaml:"ollama"`
	LanguageTool LanguageToolConfig `yaml:"languagetool"`
	PDF          PDFConfig          `yaml:"pdf"`
	Debug        DebugConfig        `yaml:"debug"`
	Output       OutputConfig       `yaml:"output"`
	Logging      LoggingConfig      `yaml:"logging"`
	Server       ServerConfig       `yaml:"server"`
}

type OllamaConfig struct {
	Host          string        `yaml:"host"` // empty: auto-detect
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	MaxInputChars int           `yaml:"max_input_chars"`
}

type LanguageToolConfig struct {
	Language     string        `yaml:"language"`
	CacheDir     string        `yaml:"cache_dir"`
	ServerURL    string        `yaml:"server_url"` // skips the local process
	JavaPath     string        `yaml:"java_path"`
	DownloadURL  string        `yaml:"download_url"`
	StartTimeout time.Duration `yaml:"start_timeout"`
}

type PDFConfig struct {
	FallbackPdftotext bool `yaml:"fallback_pdftotext"`
}

type DebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type OutputConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // text, markdown, html, json
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	APIKey         string        `yaml:"api_key"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	MaxQueueSize   int           `yaml:"max_queue_size"`
	JobTTL         time.Duration `yaml:"job_ttl"`
	TmpDir         string        `yaml:"tmp_dir"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Ollama: OllamaConfig{
			Model:         DefaultModel,
			Timeout:       120 * time.Second,
			ConnectTimeout:  5 * time.Second,
			MaxInputChars: 2000,
		},
		LanguageTool: LanguageToolConfig{
			Language:     "es",
			CacheDir:     defaultCacheDir(),
			JavaPath:     "java",
			DownloadURL:  DefaultLTDownloadURL,
			StartTimeout: 60 * time.Second,
		},
		PDF:    PDFConfig{FallbackPdftotext: true},
		Debug:  DebugConfig{Dir: "."},
		Output: OutputConfig{Path: DefaultOutput, Format: string(report.FormatText)},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Port:           "8090",
			MaxUploadBytes: defaultMaxUploadBytes,
			MaxQueueSize:   16,
			JobTTL:         time.Hour,
		},
	}
}

// Load layers defaults, the YAML file at path (if any) and DOCPROOF_*
// environment variables. An empty path falls back to $DOCPROOF_CONFIG.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Ollama.Host = envOr("DOCPROOF_OLLAMA_HOST", envOr("OLLAMA_HOST", c.Ollama.Host))
	c.Ollama.Model = envOr("DOCPROOF_OLLAMA_MODEL", c.Ollama.Model)
	c.Ollama.Timeout = envDuration("DOCPROOF_OLLAMA_TIMEOUT", c.Ollama.Timeout)
	c.Ollama.ConnectTimeout = envDuration("DOCPROOF_OLLAMA_CONNECT_TIMEOUT", c.Ollama.ConnectTimeout)
	c.Ollama.MaxInputChars = envInt("DOCPROOF_OLLAMA_MAX_INPUT_CHARS", c.Ollama.MaxInputChars)

	c.LanguageTool.Language = envOr("DOCPROOF_LT_LANGUAGE", c.LanguageTool.Language)
	c.LanguageTool.CacheDir = envOr("DOCPROOF_LT_CACHE_DIR", c.LanguageTool.CacheDir)
	c.LanguageTool.ServerURL = envOr("DOCPROOF_LT_SERVER_URL", c.LanguageTool.ServerURL)
	c.LanguageTool.JavaPath = envOr("DOCPROOF_LT_JAVA", c.LanguageTool.JavaPath)
	c.LanguageTool.DownloadURL = envOr("DOCPROOF_LT_DOWNLOAD_URL", c.LanguageTool.DownloadURL)
	c.LanguageTool.StartTimeout = envDuration("DOCPROOF_LT_START_TIMEOUT", c.LanguageTool.StartTimeout)

	c.PDF.FallbackPdftotext = envBool("DOCPROOF_PDF_FALLBACK_PDFTOTEXT", c.PDF.FallbackPdftotext)

	c.Debug.Enabled = envBool("DOCPROOF_DEBUG", c.Debug.Enabled)
	c.Debug.Dir = envOr("DOCPROOF_DEBUG_DIR", c.Debug.Dir)

	c.Output.Path = envOr("DOCPROOF_OUTPUT", c.Output.Path)
	c.Output.Format = envOr("DOCPROOF_FORMAT", c.Output.Format)

	c.Logging.Level = envOr("DOCPROOF_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envOr("DOCPROOF_LOG_FORMAT", c.Logging.Format)

	c.Server.Port = envOr("PORT", c.Server.Port)
	c.Server.APIKey = envOr("DOCPROOF_API_KEY", c.Server.APIKey)
	c.Server.MaxUploadBytes = envInt64("DOCPROOF_MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)
	c.Server.MaxQueueSize = envInt("DOCPROOF_MAX_QUEUE_SIZE", c.Server.MaxQueueSize)
	c.Server.JobTTL = envDuration("DOCPROOF_JOB_TTL", c.Server.JobTTL)
	c.Server.TmpDir = envOr("DOCPROOF_TMP_DIR", c.Server.TmpDir)
}

// ApplyDefaults fills empty or non-positive fields with default values.
func (c *Config) ApplyDefaults() {
	d := Defaults()
	if c.Ollama.Model == "" {
		c.Ollama.Model = d.Ollama.Model
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = d.Ollama.Timeout
	}
	if c.Ollama.ConnectTimeout <= 0 {
		c.Ollama.ConnectTimeout = d.Ollama.ConnectTimeout
	}
	if c.Ollama.MaxInputChars <= 0 {
		c.Ollama.MaxInputChars = d.Ollama.MaxInputChars
	}
	if c.LanguageTool.Language == "" {
		c.LanguageTool.Language = d.LanguageTool.Language
	}
	if c.LanguageTool.CacheDir == "" {
		c.LanguageTool.CacheDir = d.LanguageTool.CacheDir
	}
	if c.LanguageTool.JavaPath == "" {
		c.LanguageTool.JavaPath = d.LanguageTool.JavaPath
	}
	if c.LanguageTool.StartTimeout <= 0 {
		c.LanguageTool.StartTimeout = d.LanguageTool.StartTimeout
	}
	if c.Debug.Dir == "" {
		c.Debug.Dir = d.Debug.Dir
	}
	if c.Output.Path == "" {
		c.Output.Path = d.Output.Path
	}
	if c.Output.Format == "" {
		c.Output.Format = d.Output.Format
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Server.Port == "" {
		c.Server.Port = d.Server.Port
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = d.Server.MaxUploadBytes
	}
	if c.Server.MaxQueueSize <= 0 {
		c.Server.MaxQueueSize = d.Server.MaxQueueSize
	}
	if c.Server.JobTTL <= 0 {
		c.Server.JobTTL = d.Server.JobTTL
	}
}

// Validate checks the settings shared by the CLI and the server.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Ollama.Model) == "" {
		return fmt.Errorf("ollama.model is required")
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	if c.LanguageTool.ServerURL == "" && c.LanguageTool.CacheDir == "" {
		return fmt.Errorf("languagetool.cache_dir is required without languagetool.server_url")
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.APIKey == "" {
		return fmt.Errorf("DOCPROOF_API_KEY is required")
	}
	if n, err := strconv.Atoi(c.Server.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %q", c.Server.Port)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// NewLogger builds the process logger described by the logging section.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "docproof", "languagetool")
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
