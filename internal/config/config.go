package config

type Config interface {
	EnvConfig
	SSOConfig
	GoogleConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	SSO
	Google
	Security
}

func New() Config {
	return mainConfig{}
}
