// Package cfg loads the taskbot process configuration file.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
)

const (
	DefaultWebhookEndpoint    = "/hook"
	DefaultLogFormat          = "logfmt"
	DefaultLogLevel           = "info"
	DefaultLogTimeKey         = "time_iso8601"
	DefaultWorkflowConfigFile = "workflow-tasks.toml"
	DefaultBitbucketTimeout   = time.Minute
)

type Config struct {
	HTTPListenAddr       string `toml:"http_server_listen_addr"`
	HTTPSListenAddr      string `toml:"https_server_listen_addr"`
	HTTPSCertFile        string `toml:"https_ssl_cert_file"`
	HTTPSKeyFile         string `toml:"https_ssl_key_file"`
	WebhookEndpoint      string `toml:"webhook_endpoint"`
	WebhookSecret        string `toml:"webhook_secret"`
	MetricsEndpoint      string `toml:"metrics_endpoint"`
	LogFormat            string `toml:"log_format"`
	LogTimeKey           string `toml:"log_time_key"`
	LogLevel             string `toml:"log_level"`
	WorkflowConfigFile   string `toml:"workflow_config_file"`
	BitbucketHTTPTimeout string `toml:"bitbucket_http_timeout"`
	BitbucketTaskAPI     string `toml:"bitbucket_task_api"`
	EventFilterQuery     string `toml:"event_filter_query"`
}

// Load reads a TOML configuration.
// Unset optional settings are set to their default values.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.setDefaults()

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) setDefaults() {
	if c.WebhookEndpoint == "" {
		c.WebhookEndpoint = DefaultWebhookEndpoint
	}

	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.LogTimeKey == "" {
		c.LogTimeKey = DefaultLogTimeKey
	}

	if c.WorkflowConfigFile == "" {
		c.WorkflowConfigFile = DefaultWorkflowConfigFile
	}

	if c.BitbucketHTTPTimeout == "" {
		c.BitbucketHTTPTimeout = DefaultBitbucketTimeout.String()
	}
}

// Validate returns an error if the configuration is incomplete or contains
// invalid values.
func (c *Config) Validate() error {
	if c.HTTPListenAddr == "" && c.HTTPSListenAddr == "" {
		return errors.New("https_server_listen_addr or http_server_listen_addr must be defined, both are unset")
	}

	if c.HTTPSListenAddr != "" && (c.HTTPSCertFile == "" || c.HTTPSKeyFile == "") {
		return errors.New("https_ssl_cert_file and https_ssl_key_file must be defined when https_server_listen_addr is set")
	}

	if c.WebhookEndpoint == "/" || c.MetricsEndpoint == "/" {
		return errors.New("webhook_endpoint and metrics_endpoint must not be \"/\", the path is used by the index page")
	}

	if c.MetricsEndpoint != "" && c.MetricsEndpoint == c.WebhookEndpoint {
		return fmt.Errorf("metrics_endpoint and webhook_endpoint must differ, both are %q", c.WebhookEndpoint)
	}

	if _, err := c.BitbucketTimeout(); err != nil {
		return err
	}

	return nil
}

// BitbucketTimeout returns the parsed BitbucketHTTPTimeout value.
func (c *Config) BitbucketTimeout() (time.Duration, error) {
	if c.BitbucketHTTPTimeout == "" {
		return DefaultBitbucketTimeout, nil
	}

	d, err := time.ParseDuration(c.BitbucketHTTPTimeout)
	if err != nil {
		return 0, fmt.Errorf("bitbucket_http_timeout: %w", err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("bitbucket_http_timeout must be positive, is %s", d)
	}

	return d, nil
}

func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}
