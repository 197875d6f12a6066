package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Server     ServerConfig     `koanf:"server"`
	LLM        LLMConfig        `koanf:"llm"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Retrieve   RetrieveConfig   `koanf:"retrieve"`
	Agent      AgentConfig      `koanf:"agent"`
	Store      StoreConfig      `koanf:"store"`
	Tools      ToolsConfig      `koanf:"tools"`
	Guardrails GuardrailsConfig `koanf:"guardrails"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // openai, ollama, mock
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type EmbeddingConfig struct {
	Model               string `koanf:"model"`
	Dimensions          int    `koanf:"dimensions"`
	SyncThreshold       int    `koanf:"sync_threshold"`
	PollIntervalSeconds int    `koanf:"poll_interval_seconds"`
	CompletionWindow    string `koanf:"completion_window"`
}

type QdrantConfig struct {
	Addr       string `koanf:"addr"`
	Collection string `koanf:"collection"`
}

type IngestConfig struct {
	Dir          string   `koanf:"dir"`
	ChunkSize    int      `koanf:"chunk_size"`
	ChunkOverlap int      `koanf:"chunk_overlap"`
	Extensions   []string `koanf:"extensions"`
	TagWorkers   int      `koanf:"tag_workers"`
}

type RetrieveConfig struct {
	Limit          int     `koanf:"limit"`
	ScoreThreshold float64 `koanf:"score_threshold"`
}

type AgentConfig struct {
	Mode          string `koanf:"mode"` // agent, direct
	MaxIterations int    `koanf:"max_iterations"`
}

type StoreConfig struct {
	Provider string `koanf:"provider"` // sqlite, memory
	Path     string `koanf:"path"`
}

type ToolsConfig struct {
	Stock      StockConfig `koanf:"stock"`
	MCPServers []string    `koanf:"mcp_servers"` // stdio server commands
}

type StockConfig struct {
	APIKey         string `koanf:"api_key"`
	BaseURL        string `koanf:"base_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

type GuardrailsConfig struct {
	Enabled        bool     `koanf:"enabled"`
	BlockInjection bool     `koanf:"block_injection"`
	MaskPII        bool     `koanf:"mask_pii"`
	BlockedTerms   []string `koanf:"blocked_terms"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile loads the base config and overlays a profile-specific file
// (config.<profile>.yaml next to the base) when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI parses --config, --profile/--env and --set flags from args and
// loads the configuration with those overrides applied last.
func LoadWithCLI(args []string) (*Config, error) {
	opts, _, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(opts.ConfigPath, opts.Profile, opts.Sets)
}

type cliOptions struct {
	ConfigPath string
	Profile    string
	Sets       []string
}

// parseCLIOverrides extracts config-related flags from args, returning the
// parsed options and the remaining arguments.
func parseCLIOverrides(args []string) (cliOptions, []string, error) {
	var opts cliOptions
	var rest []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || arg == "-c":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("missing value for %s", arg)
			}
			i++
			opts.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			opts.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--profile" || arg == "--env":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("missing value for %s", arg)
			}
			i++
			opts.Profile = args[i]
		case strings.HasPrefix(arg, "--profile="):
			opts.Profile = strings.TrimPrefix(arg, "--profile=")
		case strings.HasPrefix(arg, "--env="):
			opts.Profile = strings.TrimPrefix(arg, "--env=")
		case arg == "--set":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("missing value for --set")
			}
			i++
			if !strings.Contains(args[i], "=") {
				return opts, nil, fmt.Errorf("invalid --set value %q, expected key=value", args[i])
			}
			opts.Sets = append(opts.Sets, args[i])
		case strings.HasPrefix(arg, "--set="):
			val := strings.TrimPrefix(arg, "--set=")
			if !strings.Contains(val, "=") {
				return opts, nil, fmt.Errorf("invalid --set value %q, expected key=value", val)
			}
			opts.Sets = append(opts.Sets, val)
		default:
			rest = append(rest, arg)
		}
	}

	return opts, rest, nil
}

// profileConfigPath returns the path of the profile-specific config file
// (config.<profile>.yaml next to base) if it exists, or "" otherwise.
func profileConfigPath(base, profile string) string {
	candidate := profileCandidate(base, profile)
	if candidate == "" {
		return ""
	}
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// profileCandidate names the profile overlay file for base, whether or
// not it exists on disk.
func profileCandidate(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	dir := filepath.Dir(base)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(filepath.Base(base), ext)
	return filepath.Join(dir, name+"."+profile+ext)
}

// load builds a fresh koanf instance per call so reloads never inherit
// keys from a previous file version.
func load(path, profile string, sets []string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("server.addr", ":8000")

	k.Set("llm.provider", "openai")
	k.Set("llm.model", "gpt-4o-mini")

	k.Set("embedding.model", "text-embedding-3-large")
	k.Set("embedding.dimensions", 3072)
	k.Set("embedding.sync_threshold", 5)
	k.Set("embedding.poll_interval_seconds", 10)
	k.Set("embedding.completion_window", "24h")

	k.Set("qdrant.addr", "localhost:6334")
	k.Set("qdrant.collection", "documents")

	k.Set("ingest.dir", "data")
	k.Set("ingest.chunk_size", 1000)
	k.Set("ingest.chunk_overlap", 200)
	k.Set("ingest.extensions", []string{"pdf", "docx", "doc", "md", "txt"})
	k.Set("ingest.tag_workers", 4)

	k.Set("retrieve.limit", 3)
	k.Set("retrieve.score_threshold", 0.0)

	k.Set("agent.mode", "agent")
	k.Set("agent.max_iterations", 10)

	k.Set("store.provider", "sqlite")
	k.Set("store.path", "gnosis.db")

	k.Set("tools.stock.base_url", "https://www.alphavantage.co/query")
	k.Set("tools.stock.timeout_seconds", 10)

	k.Set("guardrails.enabled", false)
	k.Set("guardrails.block_injection", true)
	k.Set("guardrails.mask_pii", true)

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Overlay profile-specific file if present
	if pp := profileConfigPath(path, profile); pp != "" {
		if err := k.Load(file.Provider(pp), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load from ENV (GNOSIS_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.Provider("GNOSIS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "GNOSIS_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// 4. Apply CLI --set overrides last
	for _, raw := range sets {
		key, value, err := parseOverride(raw)
		if err != nil {
			return nil, err
		}
		k.Set(key, value)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Conventional API key env vars take over when the config leaves them empty.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Tools.Stock.APIKey == "" {
		cfg.Tools.Stock.APIKey = os.Getenv("ALPHAVANTAGE_API_KEY")
	}

	return &cfg, nil
}

// parseOverride splits key=value and decodes the value as JSON when possible
// so booleans, numbers and structured values survive the round trip.
func parseOverride(raw string) (string, interface{}, error) {
	idx := strings.Index(raw, "=")
	if idx <= 0 {
		return "", nil, fmt.Errorf("invalid --set value %q, expected key=value", raw)
	}
	key := raw[:idx]
	val := raw[idx+1:]

	var typed interface{}
	if err := json.Unmarshal([]byte(val), &typed); err != nil {
		typed = val
	}
	return key, typed, nil
}
