package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Portal     PortalConfig     `yaml:"portal"`
	Automation AutomationConfig `yaml:"automation"`
	Storage    StorageConfig    `yaml:"storage"`
	Output     OutputConfig     `yaml:"output"`
	Merge      MergeConfig      `yaml:"merge"`
	Minio      MinioConfig      `yaml:"minio"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	Store      StoreConfig      `yaml:"store"`
	Users      []User           `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// PortalConfig describes the certificate portal and how long to wait on it.
// Waits are in milliseconds.
type PortalConfig struct {
	URL           string `yaml:"url"`
	ThirdPartyID  string `yaml:"third_party_id"`
	Headless      bool   `yaml:"headless"`
	ChromeBin     string `yaml:"chrome_bin"`
	MarkerWaitMs  int    `yaml:"marker_wait_ms"`
	FieldWaitMs   int    `yaml:"field_wait_ms"`
	SettleDelayMs int    `yaml:"settle_delay_ms"`
	LabelWaitMs   int    `yaml:"label_wait_ms"`
	NavigationMs  int    `yaml:"navigation_ms"`
}

func (p PortalConfig) MarkerWait() time.Duration  { return time.Duration(p.MarkerWaitMs) * time.Millisecond }
func (p PortalConfig) FieldWait() time.Duration   { return time.Duration(p.FieldWaitMs) * time.Millisecond }
func (p PortalConfig) SettleDelay() time.Duration { return time.Duration(p.SettleDelayMs) * time.Millisecond }
func (p PortalConfig) LabelWait() time.Duration   { return time.Duration(p.LabelWaitMs) * time.Millisecond }
func (p PortalConfig) Navigation() time.Duration  { return time.Duration(p.NavigationMs) * time.Millisecond }

// AutomationConfig bounds retries and download polling.
type AutomationConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
	MaxBackoffMs   int `yaml:"max_backoff_ms"`
	PollIntervalMs int `yaml:"poll_interval_ms"`
	MaxPolls       int `yaml:"max_polls"`
}

func (a AutomationConfig) RetryBackoff() time.Duration {
	return time.Duration(a.RetryBackoffMs) * time.Millisecond
}

func (a AutomationConfig) MaxBackoff() time.Duration {
	return time.Duration(a.MaxBackoffMs) * time.Millisecond
}

func (a AutomationConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMs) * time.Millisecond
}

// StorageConfig locates the directories a batch touches. DownloadDir is where
// the browser drops certificates; DownloadsRoot is the parent of the
// destination folders users create.
type StorageConfig struct {
	DownloadDir   string `yaml:"download_dir"`
	DownloadsRoot string `yaml:"downloads_root"`
	UploadDir     string `yaml:"upload_dir"`
	WorkDir       string `yaml:"work_dir"`
}

type OutputConfig struct {
	ResultsFile string `yaml:"results_file"`
	MergedFile  string `yaml:"merged_file"`
}

// MergeConfig overrides the page heuristics of the merger. Empty fields keep
// the built-in defaults.
type MergeConfig struct {
	MinTextLength   int      `yaml:"min_text_length"`
	RequiredMarkers []string `yaml:"required_markers"`
	MinMarkers      int      `yaml:"min_markers"`
	MinContentLines int      `yaml:"min_content_lines"`
	MinLineChars    int      `yaml:"min_line_chars"`
	KeyPattern      string   `yaml:"key_pattern"`
	Indicators      []string `yaml:"indicators"`
	MinIndicators   int      `yaml:"min_indicators"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

// Enabled reports whether finished artifacts should be archived.
func (m MinioConfig) Enabled() bool {
	return m.Endpoint != ""
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	MaxJobs int `yaml:"max_jobs"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	cfg.SetDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

// applyEnv honours the variables the portal tooling has always read from .env.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CERTIFICADO_URL"); v != "" {
		cfg.Portal.URL = v
	}
	if v := os.Getenv("OUTPUT_FILE"); v != "" {
		cfg.Output.ResultsFile = v
	}
}

// SetDefaults fills every zero value with its default.
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}

	if c.Portal.ThirdPartyID == "" {
		c.Portal.ThirdPartyID = "LANAP"
	}
	if c.Portal.MarkerWaitMs == 0 {
		c.Portal.MarkerWaitMs = 1000
	}
	if c.Portal.FieldWaitMs == 0 {
		c.Portal.FieldWaitMs = 1000
	}
	if c.Portal.SettleDelayMs == 0 {
		c.Portal.SettleDelayMs = 1000
	}
	if c.Portal.LabelWaitMs == 0 {
		c.Portal.LabelWaitMs = 1000
	}
	if c.Portal.NavigationMs == 0 {
		c.Portal.NavigationMs = 30000
	}

	if c.Automation.MaxAttempts == 0 {
		c.Automation.MaxAttempts = 5
	}
	if c.Automation.RetryBackoffMs == 0 {
		c.Automation.RetryBackoffMs = 500
	}
	if c.Automation.MaxBackoffMs == 0 {
		c.Automation.MaxBackoffMs = 8000
	}
	if c.Automation.PollIntervalMs == 0 {
		c.Automation.PollIntervalMs = 1000
	}
	if c.Automation.MaxPolls == 0 {
		c.Automation.MaxPolls = 10
	}

	home, _ := os.UserHomeDir()
	if c.Storage.DownloadDir == "" {
		c.Storage.DownloadDir = filepath.Join(home, "Downloads")
	}
	if c.Storage.DownloadsRoot == "" {
		c.Storage.DownloadsRoot = filepath.Join(home, "Downloads")
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}
	if c.Storage.WorkDir == "" {
		c.Storage.WorkDir = os.TempDir()
	}

	if c.Output.ResultsFile == "" {
		c.Output.ResultsFile = "resultados_certificados.xlsx"
	}
	if c.Output.MergedFile == "" {
		c.Output.MergedFile = "CERTIFICADOS_UNIDOS.pdf"
	}

	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.MaxJobs == 0 {
		c.Store.MaxJobs = 100
	}
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
