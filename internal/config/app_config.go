// Package config loads and validates duppy-go's configuration: env vars
// (read through internal/helper's getters, optionally primed from a .env
// file with joho/godotenv) layered under an optional YAML file parsed with
// spf13/viper, validated with go-playground/validator,
// the same struct-of-config-with-validate-tags shape the teacher's own
// config package used.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pagekite/duppy-go/internal/helper"
)

// DNSConfig controls the RFC 2136 UPDATE front-end. A zero Port disables
// it, the same null/0-disables convention spec.md §6 gives rfc2136_port
// and http_port alike.
type DNSConfig struct {
	ListenAddress string `json:"listen_address" validate:"required"`
	Port          uint16 `json:"port"`
	UDP           bool   `json:"udp"`
	TCP           bool   `json:"tcp"`
}

// Enabled reports whether the DNS front-end should be started.
func (c DNSConfig) Enabled() bool {
	return c.Port != 0
}

// HTTPConfig controls the JSON + legacy "simple" DynDNS HTTP front-end.
type HTTPConfig struct {
	Enabled       bool   `json:"enabled"`
	ListenAddress string `json:"listen_address" validate:"required_if=Enabled true"`
	Port          uint16 `json:"port" validate:"required_if=Enabled true"`
	UpdatesPath   string `json:"updates_path"`
	SimplePath    string `json:"simple_path"`
	WelcomePage   bool   `json:"welcome_page"`
	CORSOrigins   []string `json:"cors_origins"`
}

// BackendConfig selects and configures which backend.Backend drives zone
// storage: "memory" (internal/memstore), "sql" (internal/sqlstore), or
// "powerdns" (internal/powerdnsstore).
type BackendConfig struct {
	Type string `json:"type" validate:"oneof=memory sql powerdns"`

	DbType             string `json:"db_type" validate:"required_if=Type sql,omitempty,oneof=sqlite postgres mysql"`
	DbConnectionString string `json:"db_connection_string" validate:"required_if=Type sql"`

	PdnsURL           string `json:"pdns_url" validate:"required_if=Type powerdns,omitempty,url"`
	PdnsVhost         string `json:"pdns_vhost"`
	PdnsAPIKey        string `json:"pdns_api_key" validate:"required_if=Type powerdns"`
	PdnsDefaultTTL    uint32 `json:"pdns_default_ttl"`
}

// AdminAPIConfig controls the optional operator zone/key CRUD API.
type AdminAPIConfig struct {
	Enabled       bool   `json:"enabled"`
	ListenAddress string `json:"listen_address" validate:"required_if=Enabled true"`
	Port          uint16 `json:"port" validate:"required_if=Enabled true"`
	AuthProvider  string `json:"auth_provider" validate:"omitempty,oneof=fake oidc"`
	OIDCIssuerURL string `json:"oidc_issuer_url" validate:"required_if=AuthProvider oidc,omitempty,url"`
	OIDCClientID  string `json:"oidc_client_id" validate:"required_if=AuthProvider oidc"`
	TokenDbPath   string `json:"token_db_path"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

// AppConfig is duppy-go's full runtime configuration.
type AppConfig struct {
	DNS       DNSConfig      `json:"dns"`
	HTTP      HTTPConfig     `json:"http"`
	Backend   BackendConfig  `json:"backend"`
	AdminAPI  AdminAPIConfig `json:"admin_api"`

	MinimumTTL uint32 `json:"minimum_ttl"`
	DefaultTTL uint32 `json:"default_ttl"`
	LogLevel   string `json:"log_level" validate:"oneof=debug info warn error"`
	DevMode    bool   `json:"dev_mode"`
}

// GetAppConfigFromEnvironment builds an AppConfig from environment
// variables (optionally primed by a .env file), then layers a YAML file
// on top when DUPPY_CONFIG_FILE is set, matching the teacher's
// env-first-then-override loading order.
func GetAppConfigFromEnvironment() (AppConfig, error) {
	if path := os.Getenv("DUPPY_ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return AppConfig{}, fmt.Errorf("config.GetAppConfigFromEnvironment: loading env file %q: %w", path, err)
		}
	} else {
		// Best-effort: a missing .env in the working directory is not an error.
		_ = godotenv.Load()
	}

	appConfig := AppConfig{
		DNS: DNSConfig{
			ListenAddress: helper.GetEnvString("DUPPY_DNS_LISTEN_ADDRESS", "0.0.0.0"),
			Port:          uint16(helper.GetEnvInt("DUPPY_DNS_PORT", 8053)),
			UDP:           helper.GetEnvBool("DUPPY_DNS_UDP", true),
			TCP:           helper.GetEnvBool("DUPPY_DNS_TCP", true),
		},
		HTTP: HTTPConfig{
			Enabled:       helper.GetEnvBool("DUPPY_HTTP_ENABLED", true),
			ListenAddress: helper.GetEnvString("DUPPY_HTTP_LISTEN_ADDRESS", "0.0.0.0"),
			Port:          uint16(helper.GetEnvInt("DUPPY_HTTP_PORT", 5380)),
			UpdatesPath:   helper.GetEnvString("DUPPY_HTTP_UPDATES_PATH", "/v1/update"),
			SimplePath:    helper.GetEnvString("DUPPY_HTTP_SIMPLE_PATH", "/v1/simple"),
			WelcomePage:   helper.GetEnvBool("DUPPY_HTTP_WELCOME_PAGE", true),
			CORSOrigins:   helper.GetEnvStringArray("DUPPY_HTTP_CORS_ORIGINS", []string{"*"}, ",", false),
		},
		Backend: BackendConfig{
			Type:               helper.GetEnvString("DUPPY_BACKEND_TYPE", "memory"),
			DbType:             helper.GetEnvString("DUPPY_DB_TYPE", "sqlite"),
			DbConnectionString: helper.GetEnvString("DUPPY_DB_CONNECTION_STRING", "duppy.sqlite3"),
			PdnsURL:            helper.GetEnvString("DUPPY_PDNS_URL", ""),
			PdnsVhost:          helper.GetEnvString("DUPPY_PDNS_VHOST", "localhost"),
			PdnsAPIKey:         helper.GetEnvString("DUPPY_PDNS_API_KEY", ""),
			PdnsDefaultTTL:     uint32(helper.GetEnvInt("DUPPY_PDNS_DEFAULT_TTL", 3600)),
		},
		AdminAPI: AdminAPIConfig{
			Enabled:       helper.GetEnvBool("DUPPY_ADMIN_API_ENABLED", false),
			ListenAddress: helper.GetEnvString("DUPPY_ADMIN_API_LISTEN_ADDRESS", "127.0.0.1"),
			Port:          uint16(helper.GetEnvInt("DUPPY_ADMIN_API_PORT", 8443)),
			AuthProvider:  helper.GetEnvString("DUPPY_ADMIN_API_AUTH_PROVIDER", "fake"),
			OIDCIssuerURL: helper.GetEnvString("DUPPY_ADMIN_OIDC_ISSUER_URL", ""),
			OIDCClientID:  helper.GetEnvString("DUPPY_ADMIN_OIDC_CLIENT_ID", ""),
			TokenDbPath:   helper.GetEnvString("DUPPY_ADMIN_TOKEN_DB_PATH", "duppy-admin-tokens.sqlite3"),
			TokenTTLHours: helper.GetEnvInt("DUPPY_ADMIN_TOKEN_TTL_HOURS", 24*30),
		},
		MinimumTTL: uint32(helper.GetEnvInt("DUPPY_MINIMUM_TTL", 120)),
		DefaultTTL: uint32(helper.GetEnvInt("DUPPY_DEFAULT_TTL", 900)),
		LogLevel:   helper.GetEnvString("DUPPY_LOG_LEVEL", "info"),
		DevMode:    helper.GetEnvString("DUPPY_MODE", "production") == "development",
	}

	if path := os.Getenv("DUPPY_CONFIG_FILE"); path != "" {
		if err := appConfig.mergeYAMLFile(path); err != nil {
			return AppConfig{}, err
		}
	}

	return appConfig, appConfig.Validate()
}

// mergeYAMLFile loads path through a viper instance (so nested keys like
// "dns.port" resolve the same way env-style "DUPPY_DNS_PORT" does) and
// overlays any keys it sets onto the env-derived config, so an unset YAML
// key keeps its env-derived default.
func (c *AppConfig) mergeYAMLFile(path string) error {
	const op = "config.mergeYAMLFile"

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: reading %q: %w", op, path, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%s: parsing %q: %w", op, path, err)
	}

	overlay := *c
	if err := v.Unmarshal(&overlay); err != nil {
		return fmt.Errorf("%s: unmarshal %q: %w", op, path, err)
	}
	*c = overlay
	return nil
}

// Validate runs struct tag validation over the config, the same
// validator.v10 pattern the teacher's own config package used.
func (c *AppConfig) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("config.Validate: configuration validation failed: %s", formatValidationErrors(validationErrors))
		}
		return err
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	var msg string
	for _, e := range errs {
		msg += fmt.Sprintf("\n - field %q failed on %q (value: %v)", e.Field(), e.Tag(), e.Value())
	}
	return msg
}
