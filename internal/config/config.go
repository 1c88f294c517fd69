package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"findash/internal/models"
)

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `json:"listen_addr"`
	Debug      bool   `json:"debug"`

	// Directories
	DataDirectory     string `json:"data_directory"`
	SettingsDirectory string `json:"settings_directory"`

	// Spreadsheet with the movements, relative to DataDirectory unless absolute
	SourceFile string `json:"source_file"`

	// File paths
	PreferencesFile string `json:"preferences_file"`

	// Dashboard password gate; empty disables it
	Password   string        `json:"-"`
	SessionTTL time.Duration `json:"session_ttl"`

	// Unlocks an encrypted data directory at startup
	UnlockPassword string `json:"-"`

	// Assistant
	GeminiAPIKey string `json:"-"`
	Model        string `json:"model"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		ListenAddr:        ":8080",
		Debug:             false,
		DataDirectory:     filepath.Join(wd, "data"),
		SettingsDirectory: filepath.Join(wd, "data", "settings"),
		SourceFile:        "Contabilidad_2025.xlsx",
		PreferencesFile:   filepath.Join(wd, "data", "settings", "preferences.json"),
		SessionTTL:        12 * time.Hour,
		Model:             "gemini-2.5-flash",
	}
}

// Load reads .env (if present) and then the environment over the defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ensureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if addr := os.Getenv("FINDASH_LISTEN_ADDR"); addr != "" {
		c.ListenAddr = addr
	}
	if debug := os.Getenv("FINDASH_DEBUG"); debug == "true" || debug == "1" {
		c.Debug = true
	}
	if dataDir := os.Getenv("FINDASH_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
		c.SettingsDirectory = filepath.Join(dataDir, "settings")
		c.PreferencesFile = filepath.Join(dataDir, "settings", "preferences.json")
	}
	if source := os.Getenv("FINDASH_SOURCE_FILE"); source != "" {
		c.SourceFile = source
	}
	c.Password = os.Getenv("FINDASH_PASSWORD")
	if ttl := os.Getenv("FINDASH_SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("FINDASH_SESSION_TTL: %w", err)
		}
		c.SessionTTL = d
	}
	c.UnlockPassword = os.Getenv("FINDASH_UNLOCK_PASSWORD")
	c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if model := os.Getenv("FINDASH_MODEL"); model != "" {
		c.Model = model
	}
	return nil
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if strings.TrimSpace(c.SourceFile) == "" {
		errs = append(errs, errors.New("source file is empty"))
	} else if ext := strings.ToLower(filepath.Ext(c.SourceFile)); ext != ".xlsx" && ext != ".xlsm" && ext != ".csv" {
		errs = append(errs, fmt.Errorf("source file %q: expected .xlsx or .csv", c.SourceFile))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL))
	}
	return errors.Join(errs...)
}

// AssistantEnabled reports whether a model API key is configured
func (c *Config) AssistantEnabled() bool {
	return c.GeminiAPIKey != ""
}

// ensureDirectories creates required directories if they don't exist
func (c *Config) ensureDirectories() error {
	for _, dir := range []string{c.DataDirectory, c.SettingsDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LoadPreferences reads saved dashboard preferences, returning defaults when none exist
func (c *Config) LoadPreferences() (*models.Preferences, error) {
	data, err := os.ReadFile(c.PreferencesFile)
	if err != nil {
		if os.IsNotExist(err) {
			return models.DefaultPreferences(), nil
		}
		return nil, err
	}

	prefs := models.DefaultPreferences()
	if err := json.Unmarshal(data, prefs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(c.PreferencesFile), err)
	}
	return prefs, nil
}

// SavePreferences writes dashboard preferences as JSON
func (c *Config) SavePreferences(prefs *models.Preferences) error {
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.PreferencesFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.PreferencesFile, data, 0644)
}
