package cfg

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath     string `long:"db-path" env:"NEWSD_DB_PATH" description:"SQLite database path (default: ~/.local/share/newsd/newsd.db)"`
	SocketPath string `long:"socket-path" env:"NEWSD_SOCKET_PATH" description:"Unix socket path (default: $XDG_RUNTIME_DIR/newsd.sock)"`
	FeedsFile  string `long:"feeds-file" env:"NEWSD_FEEDS_FILE" description:"YAML file with feed subscriptions to import at startup"`

	// Scheduling
	RefreshInterval   int `long:"refresh-interval" env:"NEWSD_REFRESH_INTERVAL" default:"900" description:"Feed refresh interval in seconds (0 disables the scheduler)"`
	CleanupInterval   int `long:"cleanup-interval" env:"NEWSD_CLEANUP_INTERVAL" default:"86400" description:"Retention cleanup interval in seconds"`
	SummarizeInterval int `long:"summarize-interval" env:"NEWSD_SUMMARIZE_INTERVAL" default:"600" description:"Summarization pass interval in seconds"`
	FilterInterval    int `long:"filter-interval" env:"NEWSD_FILTER_INTERVAL" default:"900" description:"Filtering pass interval in seconds"`
	Staleness         int `long:"staleness" env:"NEWSD_STALENESS" default:"600" description:"Only refresh feeds last fetched more than this many seconds ago (0 refreshes all)"`
	FetchDelayMs      int `long:"fetch-delay-ms" env:"NEWSD_FETCH_DELAY_MS" default:"500" description:"Delay between consecutive feed downloads in milliseconds"`
	RetentionDays     int `long:"retention-days" env:"NEWSD_RETENTION_DAYS" default:"30" description:"Delete unsaved articles older than this many days"`

	// AI pipeline
	AIEnabled          bool    `long:"ai" env:"NEWSD_AI_ENABLED" description:"Enable the AI enrichment pipeline"`
	AIProvider         string  `long:"ai-provider" env:"NEWSD_AI_PROVIDER" default:"ollama" description:"AI backend: ollama or cohere"`
	OllamaHost         string  `long:"ollama-host" env:"OLLAMA_HOST" description:"Ollama host (default: http://localhost:11434)"`
	OllamaModel        string  `long:"ollama-model" env:"OLLAMA_MODEL" description:"Ollama model name"`
	CohereAPIKey       string  `long:"cohere-api-key" env:"COHERE_API_KEY" description:"Cohere API key"`
	CohereModel        string  `long:"cohere-model" env:"COHERE_MODEL" description:"Cohere model name"`
	RelevanceThreshold float64 `long:"relevance-threshold" env:"NEWSD_RELEVANCE_THRESHOLD" default:"0.35" description:"Articles scoring below this are marked read (0..1)"`
	MinContentLength   int     `long:"min-content-length" env:"NEWSD_MIN_CONTENT_LENGTH" description:"Minimum body length for summarization (0 uses the provider default)"`

	// IPC
	MaxConcurrentIPC int `long:"max-concurrent-ipc" env:"NEWSD_MAX_CONCURRENT_IPC" default:"4" description:"Maximum in-flight IPC requests"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"NEWSD_USER_AGENT" default:"newsd/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"NEWSD_DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	// A missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             cmp.Or(raw.DBPath, defaultDBPath()),
		SocketPath:         cmp.Or(raw.SocketPath, DefaultSocketPath()),
		FeedsFile:          raw.FeedsFile,
		RefreshInterval:    raw.RefreshInterval,
		CleanupInterval:    raw.CleanupInterval,
		SummarizeInterval:  raw.SummarizeInterval,
		FilterInterval:     raw.FilterInterval,
		Staleness:          raw.Staleness,
		FetchDelayMs:       raw.FetchDelayMs,
		RetentionDays:      raw.RetentionDays,
		AIEnabled:          raw.AIEnabled,
		AIProvider:         raw.AIProvider,
		OllamaHost:         raw.OllamaHost,
		OllamaModel:        raw.OllamaModel,
		CohereAPIKey:       raw.CohereAPIKey,
		CohereModel:        raw.CohereModel,
		RelevanceThreshold: raw.RelevanceThreshold,
		MinContentLength:   raw.MinContentLength,
		MaxConcurrentIPC:   raw.MaxConcurrentIPC,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func defaultDBPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "newsd", "newsd.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "newsd.db"
	}
	return filepath.Join(home, ".local", "share", "newsd", "newsd.db")
}

// DefaultSocketPath is also used by clients that run without a loaded
// configuration.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "newsd.sock")
	}
	return filepath.Join(os.TempDir(), "newsd.sock")
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
