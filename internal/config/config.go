package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mailcorpus/internal/models"

	"gopkg.in/yaml.v2"
)

// Default values applied before the config file and the environment.
const (
	DefaultDataDir      = "data"
	DefaultSearchLimit  = 8
	DefaultSearchMax    = 50
	DefaultMailbox      = "INBOX"
	DefaultFetchLimit   = 200
	corpusFileName      = "email_data.json"
	vectorStoreFileName = "vectorstore.db"
)

// Defaults returns a configuration with every default filled in.
func Defaults() *models.Config {
	return &models.Config{
		DataDir:         DefaultDataDir,
		MaxEmailBytes:   models.DefaultMaxEmailBytes,
		EnableGuardrail: true,
		Search: models.SearchConfig{
			DefaultLimit: DefaultSearchLimit,
			MaxLimit:     DefaultSearchMax,
		},
		Email: models.EmailConfig{
			MailBox: DefaultMailbox,
			Limit:   DefaultFetchLimit,
		},
		Log: models.LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration from the specified YAML file, then applies
// environment overrides and normalizes the result.
func Load(filepath string) (*models.Config, error) {
	configFile, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	config := Defaults()
	if err := yaml.Unmarshal(configFile, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath, err)
	}

	applyEnv(config, os.LookupEnv)
	Normalize(config)
	return config, nil
}

// LoadDefault behaves like Load but treats a missing file as an empty one.
func LoadDefault(path string) (*models.Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg = Defaults()
	applyEnv(cfg, os.LookupEnv)
	Normalize(cfg)
	return cfg, nil
}

// Normalize applies floors and derived paths. default_limit never exceeds max_limit.
func Normalize(cfg *models.Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.CorpusPath == "" {
		cfg.CorpusPath = filepath.Join(cfg.DataDir, corpusFileName)
	}
	if cfg.VectorDBPath == "" {
		cfg.VectorDBPath = filepath.Join(cfg.DataDir, vectorStoreFileName)
	}
	if cfg.MaxEmailBytes <= 0 {
		cfg.MaxEmailBytes = models.DefaultMaxEmailBytes
	}
	if cfg.Search.MaxLimit < 1 {
		cfg.Search.MaxLimit = 1
	}
	if cfg.Search.DefaultLimit < 1 {
		cfg.Search.DefaultLimit = 1
	}
	if cfg.Search.DefaultLimit > cfg.Search.MaxLimit {
		cfg.Search.DefaultLimit = cfg.Search.MaxLimit
	}
	if cfg.Email.MailBox == "" {
		cfg.Email.MailBox = DefaultMailbox
	}
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides file values with environment variables.
// Values that fail to parse are ignored and the previous value is kept.
func applyEnv(cfg *models.Config, lookup lookupFunc) {
	if val, ok := lookup("DATA_DIR"); ok && val != "" {
		cfg.DataDir = val
	}
	if val, ok := lookup("CORPUS_PATH"); ok && val != "" {
		cfg.CorpusPath = val
	}
	if val, ok := lookup("VECTOR_DB_PATH"); ok && val != "" {
		cfg.VectorDBPath = val
	}
	if val, ok := lookup("MAX_EMAIL_BYTES"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			cfg.MaxEmailBytes = n
		}
	}
	if val, ok := lookup("SEARCH_DEFAULT_LIMIT"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			cfg.Search.DefaultLimit = n
		}
	}
	if val, ok := lookup("SEARCH_MAX_LIMIT"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			cfg.Search.MaxLimit = n
		}
	}
	if val, ok := lookup("ENABLE_GUARDRAIL"); ok {
		cfg.EnableGuardrail = strings.EqualFold(strings.TrimSpace(val), "true")
	}
	if val, ok := lookup("LOG_LEVEL"); ok && val != "" {
		cfg.Log.Level = val
	}
	if val, ok := lookup("LOG_FORMAT"); ok && val != "" {
		cfg.Log.Format = val
	}
	if val, ok := lookup("IMAP_SERVER"); ok && val != "" {
		cfg.Email.Imap = val
	}
	if val, ok := lookup("IMAP_LOGIN"); ok && val != "" {
		cfg.Email.Login = val
	}
	if val, ok := lookup("IMAP_PASSWORD"); ok && val != "" {
		cfg.Email.Password = val
	}
	if val, ok := lookup("IMAP_MAILBOX"); ok && val != "" {
		cfg.Email.MailBox = val
	}
	if val, ok := lookup("IMAP_SINCE"); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			cfg.Email.Since = d
		}
	}
}
