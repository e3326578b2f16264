package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	// DefaultConfigFileName is the standard configuration file name.
	DefaultConfigFileName = "idro.toml"

	// XDGConfigSubdir is the subdirectory under XDG_CONFIG_HOME for idro.
	XDGConfigSubdir = "idro"

	// EnvFileName is the dotenv file read from the working directory.
	EnvFileName = ".env"
)

// LoadError represents an error that occurred while loading configuration.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading config from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load attempts to load configuration from multiple sources in order of precedence:
// 1. Explicit path (if provided)
// 2. XDG config path (~/.config/idro/idro.toml)
// 3. Current working directory (./idro.toml)
// 4. Default configuration (if createDefault is true)
//
// IDRO_* environment variables (optionally from a .env file) override
// whatever the file contains.
//
// Returns the loaded configuration and the path it was loaded from.
func Load(explicitPath string, createDefault bool) (*Config, string, error) {
	if err := loadDotEnv(EnvFileName); err != nil {
		return nil, "", &LoadError{Path: EnvFileName, Err: err}
	}

	cfg, path, err := loadConfigFile(explicitPath, createDefault)
	if err != nil {
		return nil, "", err
	}

	ApplyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, "", &LoadError{Path: path, Err: fmt.Errorf("validating environment overrides: %w", err)}
	}

	return cfg, path, nil
}

// candidatePaths lists the config files Load looks for, in order.
func candidatePaths() []string {
	var paths []string
	if p := xdgConfigPath(); p != "" {
		paths = append(paths, p)
	}
	return append(paths, filepath.Join(".", DefaultConfigFileName))
}

func loadConfigFile(explicitPath string, createDefault bool) (*Config, string, error) {
	if explicitPath != "" {
		cfg, err := loadFromFile(explicitPath)
		if err != nil {
			return nil, "", &LoadError{Path: explicitPath, Err: err}
		}
		return cfg, explicitPath, nil
	}

	candidates := candidatePaths()
	for _, path := range candidates {
		if !fileExists(path) {
			continue
		}
		cfg, err := loadFromFile(path)
		if err != nil {
			return nil, "", &LoadError{Path: path, Err: err}
		}
		return cfg, path, nil
	}

	if !createDefault {
		return nil, "", fmt.Errorf("no configuration file found; searched: %s", strings.Join(candidates, ", "))
	}

	// Write the defaults to the first location we can create. A read-only
	// home still gets an in-memory default.
	cfg := Default()
	for _, path := range candidates {
		if err := Save(cfg, path); err == nil {
			return cfg, path, nil
		}
	}
	return cfg, "", nil
}

// loadFromFile decodes path over the defaults, so omitted keys keep their
// default values.
func loadFromFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML under a short header.
func Save(cfg *Config, path string) error {
	if err := ensureParent(path, "config"); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(configHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}
	return nil
}

const configHeader = `# IDRO configuration
# Responder console and reference backend.
# IDRO_* environment variables and a .env file override values set here.

`

// Environment variables that override file configuration.
const (
	EnvAPIURL     = "IDRO_API_URL"
	EnvTeam       = "IDRO_TEAM"
	EnvMLURL      = "IDRO_ML_URL"
	EnvMapsAPIKey = "IDRO_MAPS_API_KEY"
	EnvDBPath     = "IDRO_DB_PATH"
	EnvListenAddr = "IDRO_LISTEN_ADDR"
)

// loadDotEnv reads a dotenv file into the process environment. A missing
// file is not an error. Variables already set are left untouched.
func loadDotEnv(path string) error {
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("reading dotenv: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with the IDRO_* variables returned by lookup.
// Setting IDRO_ML_URL enables the ML client and setting IDRO_MAPS_API_KEY
// enables reverse geocoding.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvAPIURL); ok {
		cfg.API.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := get(EnvTeam); ok {
		cfg.Responder.TeamName = v
	}
	if v, ok := get(EnvMLURL); ok {
		cfg.ML.URL = strings.TrimRight(v, "/")
		cfg.ML.Enabled = true
	}
	if v, ok := get(EnvMapsAPIKey); ok {
		cfg.Geocode.APIKey = v
		cfg.Geocode.Enabled = true
	}
	if v, ok := get(EnvDBPath); ok {
		cfg.Database.Path = v
	}
	if v, ok := get(EnvListenAddr); ok {
		cfg.Server.ListenAddr = v
	}
}

// xdgConfigPath returns the XDG-compliant config file path.
// Returns empty string if XDG_CONFIG_HOME is not set and HOME is not available.
func xdgConfigPath() string {
	// Check XDG_CONFIG_HOME first
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig != "" {
		return filepath.Join(xdgConfig, XDGConfigSubdir, DefaultConfigFileName)
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", XDGConfigSubdir, DefaultConfigFileName)
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dataDir returns $XDG_DATA_HOME/idro (or ~/.local/share/idro), or "" when
// neither is known.
func dataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, XDGConfigSubdir)
}

// ensureParent creates the directory holding path.
func ensureParent(path, what string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating %s directory: %w", what, err)
	}
	return nil
}

// EnsureDataDir resolves the backend database path and creates its
// directory. Relative paths live under the XDG data directory when it can be
// created, else in the working directory.
func EnsureDataDir(cfg *Config) (string, error) {
	dbPath := cfg.Database.Path
	if filepath.IsAbs(dbPath) {
		return dbPath, ensureParent(dbPath, "database")
	}

	if dir := dataDir(); dir != "" {
		full := filepath.Join(dir, dbPath)
		if ensureParent(full, "database") == nil {
			return full, nil
		}
	}
	return dbPath, ensureParent(dbPath, "database")
}

// EnsureLogDir creates the directory of the log file. An empty path means
// file logging is off.
func EnsureLogDir(cfg *Config) (string, error) {
	logPath := cfg.Logging.File
	if logPath == "" {
		return "", nil
	}
	return logPath, ensureParent(logPath, "log")
}

// BackupDir returns the backup directory next to the database, creating it.
func BackupDir(cfg *Config) (string, error) {
	dir := "backups"
	switch {
	case filepath.IsAbs(cfg.Database.Path):
		dir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	case dataDir() != "":
		dir = filepath.Join(dataDir(), "backups")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	return dir, nil
}
