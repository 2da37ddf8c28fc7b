package config

// Config represents the .sightline/config.yaml file.
type Config struct {
	Reports   ReportsConfig   `yaml:"reports"`
	Agent     AgentConfig     `yaml:"agent"`
	Browser   BrowserConfig   `yaml:"browser"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Publish   PublishConfig   `yaml:"publish"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
}

// Collision policies for a report directory that already exists.
const (
	CollisionReuse  = "reuse"
	CollisionSuffix = "suffix"
	CollisionReject = "reject"
)

// ReportsConfig controls where run artifacts are written.
type ReportsConfig struct {
	Dir       string `yaml:"dir"`
	Collision string `yaml:"collision"`
	JUnit     bool   `yaml:"junit"`
}

// AgentConfig configures the computer-use model endpoint.
type AgentConfig struct {
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	MaxActions     int    `yaml:"max_actions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// BrowserConfig configures the Chrome session.
type BrowserConfig struct {
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	ExecPath       string `yaml:"exec_path"`
}

// MetricsConfig controls the Prometheus textfile written per run.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// ArchiveConfig points at an optional Postgres run archive.
type ArchiveConfig struct {
	DatabaseURL    string `yaml:"database_url"`
	DatabaseURLEnv string `yaml:"database_url_env"`
}

// PublishConfig uploads finished report directories to object storage.
// Credentials come from each provider's default chain unless set here.
type PublishConfig struct {
	Provider           string `yaml:"provider"`
	Bucket             string `yaml:"bucket"`
	Prefix             string `yaml:"prefix"`
	Region             string `yaml:"region"`
	Endpoint           string `yaml:"endpoint"`
	AccessKeyEnv       string `yaml:"access_key_env"`
	SecretKeyEnv       string `yaml:"secret_key_env"`
	S3PathStyle        bool   `yaml:"s3_path_style"`
	GCPCredentialsFile string `yaml:"gcp_credentials_file"`
	AzureAccount       string `yaml:"azure_account"`
	AzureEndpoint      string `yaml:"azure_endpoint"`
	AzureKeyEnv        string `yaml:"azure_key_env"`
	AzureSASTokenEnv   string `yaml:"azure_sas_token_env"`
}

// Enabled reports whether publishing is configured.
func (p PublishConfig) Enabled() bool {
	return p.Provider != ""
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// ServerConfig configures the report server started by "sightline serve".
type ServerConfig struct {
	Port         int    `yaml:"port"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}
