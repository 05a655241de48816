package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration values
type Config struct {
	Port           string `mapstructure:"port"`
	LogLevel       string `mapstructure:"log_level"`
	LogDevelopment bool   `mapstructure:"log_development"`
	GinMode        string `mapstructure:"gin_mode"`

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	FormsFile            string `mapstructure:"forms_file"`
	FormsWatch           bool   `mapstructure:"forms_watch"`
	FormFallbackToSource bool   `mapstructure:"form_fallback_to_source"`
	StatusPerKind        bool   `mapstructure:"status_per_kind"`

	RecaptchaSecret     string  `mapstructure:"recaptcha_secret"`
	RecaptchaVerifyURL  string  `mapstructure:"recaptcha_verify_url"`
	RecaptchaTokenField string  `mapstructure:"recaptcha_token_field"`
	RecaptchaMinScore   float64 `mapstructure:"recaptcha_min_score"`

	PipedriveAPIToken  string `mapstructure:"pipedrive_api_token"`
	PipedriveBaseURL   string `mapstructure:"pipedrive_base_url"`
	CRMOwnerID         int64  `mapstructure:"crm_owner_id"`
	CRMPersonVisibleTo string `mapstructure:"crm_person_visible_to"`
	CRMLeadVisibleTo   string `mapstructure:"crm_lead_visible_to"`

	BackupDriver   string `mapstructure:"backup_driver"`
	BackupDSN      string `mapstructure:"backup_dsn"`
	BackupTable    string `mapstructure:"backup_table"`
	AirtableAPIKey string `mapstructure:"airtable_api_key"`
	AirtableBaseID string `mapstructure:"airtable_base_id"`
	AirtableTable  string `mapstructure:"airtable_table"`

	RedriveSchedule    string        `mapstructure:"redrive_schedule"`
	RedriveMinAge      time.Duration `mapstructure:"redrive_min_age"`
	RedriveMaxAttempts int           `mapstructure:"redrive_max_attempts"`

	// Zero means outbound calls never time out
	HTTPClientTimeout time.Duration `mapstructure:"http_client_timeout"`
}

var defaults = map[string]any{
	"port":                    "8080",
	"log_level":               "info",
	"log_development":         false,
	"gin_mode":                "release",
	"cors_allowed_origins":    []string{},
	"forms_file":              "config/forms.yaml",
	"forms_watch":             true,
	"form_fallback_to_source": true,
	"status_per_kind":         false,
	"recaptcha_secret":        "",
	"recaptcha_verify_url":    "https://www.google.com/recaptcha/api/siteverify",
	"recaptcha_token_field":   "g-recaptcha-response",
	"recaptcha_min_score":     0.0,
	"pipedrive_api_token":     "",
	"pipedrive_base_url":      "https://api.pipedrive.com",
	"crm_owner_id":            0,
	"crm_person_visible_to":   "3",
	"crm_lead_visible_to":     "3",
	"backup_driver":           "postgres",
	"backup_dsn":              "",
	"backup_table":            "form_submissions",
	"airtable_api_key":        "",
	"airtable_base_id":        "",
	"airtable_table":          "Submissions",
	"redrive_schedule":        "",
	"redrive_min_age":         10 * time.Minute,
	"redrive_max_attempts":    5,
	"http_client_timeout":     time.Duration(0),
}

// LoadConfig reads configuration from environment variables, optionally
// layered over the YAML file named by CONFIG_FILE
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, err
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	cfg.CORSAllowedOrigins = cleanList(cfg.CORSAllowedOrigins)
	cfg.BackupDriver = strings.ToLower(strings.TrimSpace(cfg.BackupDriver))
	return cfg, nil
}

// Validate reports every setting the server cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.RecaptchaSecret == "" {
		errs = append(errs, errors.New("RECAPTCHA_SECRET is required"))
	}
	if c.PipedriveAPIToken == "" {
		errs = append(errs, errors.New("PIPEDRIVE_API_TOKEN is required"))
	}
	if c.FormsFile == "" {
		errs = append(errs, errors.New("FORMS_FILE is required"))
	}

	switch c.BackupDriver {
	case "postgres", "sqlite":
		if c.BackupDSN == "" {
			errs = append(errs, fmt.Errorf("BACKUP_DSN is required for the %s backup driver", c.BackupDriver))
		}
	case "airtable":
		if c.AirtableAPIKey == "" || c.AirtableBaseID == "" {
			errs = append(errs, errors.New("AIRTABLE_API_KEY and AIRTABLE_BASE_ID are required for the airtable backup driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BACKUP_DRIVER %q", c.BackupDriver))
	}

	return errors.Join(errs...)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
