package models

import "time"

// DefaultMaxEmailBytes is the default size guardrail for one raw message (5 MiB).
const DefaultMaxEmailBytes = 5 * 1024 * 1024

// Config represents the application configuration
type Config struct {
	DataDir         string       `yaml:"dataDir"`
	CorpusPath      string       `yaml:"corpusPath"`
	VectorDBPath    string       `yaml:"vectorDbPath"`
	MaxEmailBytes   int64        `yaml:"maxEmailBytes"`
	EnableGuardrail bool         `yaml:"enableGuardrail"`
	Search          SearchConfig `yaml:"search"`
	Email           EmailConfig  `yaml:"email"`
	Log             LogConfig    `yaml:"log"`
}

// SearchConfig bounds how many hits a search may request from the vector store.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

// EmailConfig represents IMAP email configuration
type EmailConfig struct {
	Imap     string        `yaml:"imap"`
	Login    string        `yaml:"login"`
	Password string        `yaml:"password"`
	MailBox  string        `yaml:"mailbox"`
	Since    time.Duration `yaml:"since"`
	Limit    int           `yaml:"limit"`
}

// LogConfig selects the logger level and output format ("json" or "text").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
