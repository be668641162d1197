// Package config provides process-wide configuration for the swissarmyhammer engine.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the single process-wide configuration object. Components take a
// *Config reference rather than reaching for a module-level singleton.
type Config struct {
	Service  ServiceConfig  `toml:"service"`
	Prompts  PromptsConfig  `toml:"prompts"`
	Issues   IssuesConfig   `toml:"issues"`
	Workflow WorkflowConfig `toml:"workflow"`
	Engine   EngineConfig   `toml:"engine"`
	Semantic SemanticConfig `toml:"semantic"`
	Validator ValidatorConfig `toml:"validator"`
	Logging  LoggingConfig  `toml:"logging"`
	Monitor  MonitorConfig  `toml:"monitor"`
}

// ServiceConfig contains process-level settings.
type ServiceConfig struct {
	DataDir         string `toml:"data_dir"`
	MaxFilenameLen  int    `toml:"max_filename_len"`
	DisableColor    bool   `toml:"disable_color"`
}

// PromptsConfig configures the prompt library (C2).
type PromptsConfig struct {
	EnvFallback       bool `toml:"env_fallback"`
	MaxIncludeDepth   int  `toml:"max_include_depth"`
}

// IssuesConfig configures the issue store (C3).
type IssuesConfig struct {
	RootDir string `toml:"root_dir"`
}

// WorkflowConfig configures workflow and run storage (C4).
type WorkflowConfig struct {
	Compress bool `toml:"compress"`
}

// EngineConfig configures the execution engine (C5).
type EngineConfig struct {
	DefaultTimeoutSeconds int `toml:"default_timeout_seconds"`
	MaxExecutionSteps     int `toml:"max_execution_steps"`
	MaxPathLengthFull     int `toml:"max_path_length_full"`
	MaxPathLengthMinimal  int `toml:"max_path_length_minimal"`
	LLMModel              string `toml:"llm_model"`
	LLMAPIKey             string `toml:"llm_api_key"`
}

// SemanticConfig configures the semantic index (C6).
type SemanticConfig struct {
	MinChunkSize         int     `toml:"min_chunk_size"`
	MaxChunkSize         int     `toml:"max_chunk_size"`
	MaxChunksPerFile     int     `toml:"max_chunks_per_file"`
	MaxFileSizeBytes     int64   `toml:"max_file_size_bytes"`
	SimpleSearchThreshold float64 `toml:"simple_search_threshold"`
	CodeSimilarityThreshold float64 `toml:"code_similarity_threshold"`
	ExcerptLength        int     `toml:"excerpt_length"`
	ContextLines         int     `toml:"context_lines"`
	EmbeddingModel       string  `toml:"embedding_model"`
	EmbeddingAPIKey      string  `toml:"embedding_api_key"`
	DebounceMs           int     `toml:"debounce_ms"`
	DBPath               string  `toml:"db_path"`
}

// ValidatorConfig configures cross-cutting prompt/workflow validation (C7).
type ValidatorConfig struct {
	MaxWorkflowComplexity int  `toml:"max_workflow_complexity"`
	UnreachableIsError    bool `toml:"unreachable_is_error"`
}

// LoggingConfig contains logging settings, mirrored on arbor's writer config.
type LoggingConfig struct {
	Level      string      `toml:"level"`
	Format     string      `toml:"format"`
	Output     StringSlice `toml:"output"`
	TimeFormat string      `toml:"time_format"`
	MaxSizeMB  int         `toml:"max_size_mb"`
	MaxBackups int         `toml:"max_backups"`
}

// MonitorConfig enables the optional read-only HTTP status surface.
type MonitorConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// StringSlice unmarshals from either a scalar string or an array of strings.
type StringSlice []string

// UnmarshalTOML implements toml.Unmarshaler for flexible config parsing.
func (s *StringSlice) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*s = []string{v}
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string in array, got %T", item)
			}
			result[i] = str
		}
		*s = result
	default:
		return fmt.Errorf("expected string or array, got %T", data)
	}
	return nil
}

// DefaultConfig returns the default configuration. HOME, NO_COLOR, and
// SAH_MAX_FILENAME_LEN are read once, here, per spec.md §6.6.
func DefaultConfig() *Config {
	maxLen := 100
	if v := os.Getenv("SAH_MAX_FILENAME_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxLen = n
		}
	}

	return &Config{
		Service: ServiceConfig{
			DataDir:        DefaultDataDir(),
			MaxFilenameLen: maxLen,
			DisableColor:   os.Getenv("NO_COLOR") != "",
		},
		Prompts: PromptsConfig{
			EnvFallback:     false,
			MaxIncludeDepth: 16,
		},
		Issues: IssuesConfig{
			RootDir: "./issues",
		},
		Workflow: WorkflowConfig{
			Compress: false,
		},
		Engine: EngineConfig{
			DefaultTimeoutSeconds: 0,
			MaxExecutionSteps:     500,
			MaxPathLengthFull:     1000,
			MaxPathLengthMinimal:  100,
			LLMModel:              "gemini-3-flash-preview",
			LLMAPIKey:             os.Getenv("GOOGLE_GEMINI_API_KEY"),
		},
		Semantic: SemanticConfig{
			MinChunkSize:            20,
			MaxChunkSize:            20000,
			MaxChunksPerFile:        500,
			MaxFileSizeBytes:        1024 * 1024,
			SimpleSearchThreshold:   0.5,
			CodeSimilarityThreshold: 0.7,
			ExcerptLength:           240,
			ContextLines:            3,
			EmbeddingModel:          "text-embedding-004",
			EmbeddingAPIKey:         os.Getenv("GOOGLE_GEMINI_API_KEY"),
			DebounceMs:              500,
			DBPath:                  "",
		},
		Validator: ValidatorConfig{
			MaxWorkflowComplexity: 200,
			UnreachableIsError:    false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     StringSlice{"file"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Port:    8420,
		},
	}
}

// DefaultDataDir returns the per-platform data directory: %APPDATA%/swissarmyhammer
// on Windows, ~/Library/Application Support/swissarmyhammer on macOS, and
// $XDG_DATA_HOME/swissarmyhammer (falling back to ~/.swissarmyhammer) elsewhere.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "swissarmyhammer")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "swissarmyhammer")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "swissarmyhammer")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "swissarmyhammer")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".swissarmyhammer")
	}
}

// HomeDir returns $HOME, the user-scope directory root named in spec.md §6.6.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}

// DefaultConfigPath returns the default location for a TOML config file,
// $HOME/.swissarmyhammer/config.toml.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), ".swissarmyhammer", "config.toml")
}

// Load loads configuration from a TOML file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// LoadFromString loads configuration from a TOML string, merging with defaults.
func LoadFromString(tomlStr string) (*Config, error) {
	cfg := DefaultConfig()

	expanded := os.ExpandEnv(tomlStr)
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config string: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

func (c *Config) expandPaths() {
	home := HomeDir()
	expandTilde := func(path string) string {
		if strings.HasPrefix(path, "~/") {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	c.Service.DataDir = expandTilde(c.Service.DataDir)
	c.Semantic.DBPath = expandTilde(c.Semantic.DBPath)
}

// Save writes the configuration to a file in TOML format.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// SemanticDBPath returns the path to the semantic index database file.
func (c *Config) SemanticDBPath() string {
	if c.Semantic.DBPath != "" {
		return c.Semantic.DBPath
	}
	return filepath.Join(c.Service.DataDir, "semantic.db")
}

// LogPath returns the path to the engine's log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Service.DataDir, "logs", "swissarmyhammer.log")
}

// RunsDir returns the base directory workflow runs are persisted under.
func (c *Config) RunsDir() string {
	return filepath.Join(c.Service.DataDir, "runs")
}

// UserPromptsDir returns $HOME/.swissarmyhammer/prompts, the user tier (C1).
func (c *Config) UserPromptsDir() string {
	return filepath.Join(HomeDir(), ".swissarmyhammer", "prompts")
}

// UserWorkflowsDir returns $HOME/.swissarmyhammer/workflows, the user tier (C1).
func (c *Config) UserWorkflowsDir() string {
	return filepath.Join(HomeDir(), ".swissarmyhammer", "workflows")
}

// EnsureDirectories creates all directories the engine writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Service.DataDir,
		c.RunsDir(),
		filepath.Dir(c.LogPath()),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("invalid monitor port: %d (must be 0-65535)", c.Monitor.Port)
	}
	if c.Semantic.MinChunkSize < 0 || c.Semantic.MaxChunkSize <= c.Semantic.MinChunkSize {
		return fmt.Errorf("invalid chunk size bounds: min=%d max=%d", c.Semantic.MinChunkSize, c.Semantic.MaxChunkSize)
	}
	if c.Semantic.SimpleSearchThreshold < -1 || c.Semantic.SimpleSearchThreshold > 1 {
		return fmt.Errorf("simple_search_threshold must be in [-1, 1]")
	}
	if c.Engine.MaxExecutionSteps < 1 {
		return fmt.Errorf("max_execution_steps must be at least 1")
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Logging.Output = make(StringSlice, len(c.Logging.Output))
	copy(clone.Logging.Output, c.Logging.Output)
	return &clone
}

// PathHash generates a stable short identifier for a filesystem path.
func PathHash(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	absPath = filepath.Clean(absPath)
	h := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(h[:])[:16]
}
