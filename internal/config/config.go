package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Upstream UpstreamConfig `mapstructure:"upstream" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Notify   NotifyConfig   `mapstructure:"notify" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// UpstreamConfig describes the analysis backend this service watches:
// where to fetch the job snapshot, where to probe session identity,
// and where the lifecycle event feed lives.
type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// Token is the bearer token presented to the upstream backend.
	// Empty means unauthenticated requests; the upstream rejects them
	// and the engine simply never activates.
	Token string `mapstructure:"token"`

	StatusPath   string `mapstructure:"status_path" validate:"required"`
	IdentityPath string `mapstructure:"identity_path" validate:"required"`
	EventsPath   string `mapstructure:"events_path" validate:"required"`

	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
}

// AuthConfig contains authentication settings for the downstream API surface.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// NotifyConfig controls how long completion notices stay live before
// they self-expire.
type NotifyConfig struct {
	SuccessTTLSeconds int `mapstructure:"success_ttl_seconds" validate:"required,gt=0"`
	InfoTTLSeconds    int `mapstructure:"info_ttl_seconds" validate:"required,gt=0"`
}
