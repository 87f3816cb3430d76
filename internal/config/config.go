package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// DefaultPath — файл конфигурации по умолчанию; отсутствие файла не ошибка.
const DefaultPath = "configurator.json"

type Config struct {
	Port string `json:"port"`

	// Пусто — встроенные схема и справочники
	SchemaFile string `json:"schemaFile"`
	EnumsDir   string `json:"enumsDir"`
	ConfigsDir string `json:"configsDir"` // конфигурации, импортируемые при старте

	// Оживление
	EnforceTypes    bool `json:"enforceTypes"`
	PreserveUnknown bool `json:"preserveUnknown"`
	DebugRevival    bool `json:"debugRevival"`

	LogLevel  string `json:"logLevel"`  // debug | info | warn | error
	LogFormat string `json:"logFormat"` // text | json
}

func def() Config {
	return Config{
		Port:      "8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

func loadJSON(path string, c Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func parseBool(v string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

// Load: умолчания, затем JSON по jsonPath (или -config), затем ENV, затем флаги из args.
func Load(jsonPath string, args []string) (Config, error) {
	fs := flag.NewFlagSet("configurator", flag.ContinueOnError)
	configPath := fs.String("config", jsonPath, "Path to config JSON")
	port := fs.String("port", "", "HTTP port")
	schemaFile := fs.String("schema", "", "Schema YAML (empty = embedded)")
	enums := fs.String("enums", "", "Enum catalog directory (empty = embedded)")
	configs := fs.String("configs", "", "Directory with configurations imported on start")
	enforce := fs.String("enforce-types", "", "Fail revival on type mismatch (true/false)")
	preserve := fs.String("preserve-unknown", "", "Keep undeclared properties (true/false)")
	debug := fs.String("debug-revival", "", "Log revival decisions (true/false)")
	level := fs.String("log-level", "", "Log level (debug/info/warn/error)")
	format := fs.String("log-format", "", "Log format (text/json)")
	if err := fs.Parse(args); err != nil {
		return def(), err
	}

	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(*configPath); err == nil && !st.IsDir() {
		c2, err := loadJSON(*configPath, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = c2
	}

	// ENV overrides
	cfg.Port = getenv("CONFIGURATOR_PORT", cfg.Port)
	cfg.SchemaFile = getenv("CONFIGURATOR_SCHEMA_FILE", cfg.SchemaFile)
	cfg.EnumsDir = getenv("CONFIGURATOR_ENUMS_DIR", cfg.EnumsDir)
	cfg.ConfigsDir = getenv("CONFIGURATOR_CONFIGS_DIR", cfg.ConfigsDir)
	cfg.EnforceTypes = getenvBool("CONFIGURATOR_ENFORCE_TYPES", cfg.EnforceTypes)
	cfg.PreserveUnknown = getenvBool("CONFIGURATOR_PRESERVE_UNKNOWN", cfg.PreserveUnknown)
	cfg.DebugRevival = getenvBool("CONFIGURATOR_DEBUG_REVIVAL", cfg.DebugRevival)
	cfg.LogLevel = getenv("CONFIGURATOR_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("CONFIGURATOR_LOG_FORMAT", cfg.LogFormat)

	// Flags overrides: только явно заданные
	var ferr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = strings.TrimSpace(*port)
		case "schema":
			cfg.SchemaFile = strings.TrimSpace(*schemaFile)
		case "enums":
			cfg.EnumsDir = strings.TrimSpace(*enums)
		case "configs":
			cfg.ConfigsDir = strings.TrimSpace(*configs)
		case "enforce-types":
			cfg.EnforceTypes, ferr = flagBool(f.Name, *enforce, ferr)
		case "preserve-unknown":
			cfg.PreserveUnknown, ferr = flagBool(f.Name, *preserve, ferr)
		case "debug-revival":
			cfg.DebugRevival, ferr = flagBool(f.Name, *debug, ferr)
		case "log-level":
			cfg.LogLevel = strings.TrimSpace(*level)
		case "log-format":
			cfg.LogFormat = strings.TrimSpace(*format)
		}
	})
	if ferr != nil {
		return cfg, ferr
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return cfg, fmt.Errorf("invalid port %q", cfg.Port)
	}
	return cfg, nil
}

func flagBool(name, v string, prev error) (bool, error) {
	b, ok := parseBool(v)
	if !ok && prev == nil {
		return false, fmt.Errorf("invalid value %q for -%s", v, name)
	}
	return b, prev
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger строит slog-логгер по LogFormat и LogLevel.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
