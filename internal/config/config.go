// Package config parses the connection-string and environment-variable
// configuration surface. Loading from a config file is explicitly out of
// scope.
package config

import (
	"os"
	"strings"

	"github.com/appinsights-go/agent/internal/perr"
)

const (
	defaultIngestionEndpoint = "https://dc.services.visualstudio.com"
	ingestionPath            = "/v2.1/track"

	envConnectionString = "APPLICATIONINSIGHTS_CONNECTION_STRING"
	envLegacyIKey       = "APPINSIGHTS_INSTRUMENTATIONKEY"
	envRoleName         = "APPLICATIONINSIGHTS_ROLE_NAME"
	envRoleInstance     = "APPLICATIONINSIGHTS_ROLE_INSTANCE"
)

// Config is the resolved set of values the pipeline needs to start: the
// tenant key, the two HTTPS endpoints, and the role identity tags.
type Config struct {
	IKey         string
	IngestionURL string // includes the /v2.1/track suffix
	LiveEndpoint string
	RoleName     string
	RoleInstance string
}

// FromEnv resolves configuration the way the host process would at
// startup: the connection string env var takes precedence, falling back
// to the legacy bare-iKey var.
func FromEnv() (Config, error) {
	if cs := os.Getenv(envConnectionString); cs != "" {
		cfg, err := Parse(cs)
		if err != nil {
			return Config{}, err
		}
		applyRoleEnv(&cfg)
		return cfg, nil
	}
	if ikey := os.Getenv(envLegacyIKey); ikey != "" {
		cfg := Config{
			IKey:         ikey,
			IngestionURL: defaultIngestionEndpoint + ingestionPath,
			LiveEndpoint: defaultLiveEndpoint,
		}
		applyRoleEnv(&cfg)
		return cfg, nil
	}
	return Config{}, perr.New("config", perr.InvalidInput, nil)
}

func applyRoleEnv(cfg *Config) {
	if v := os.Getenv(envRoleName); v != "" {
		cfg.RoleName = v
	}
	if v := os.Getenv(envRoleInstance); v != "" {
		cfg.RoleInstance = v
	}
}

const defaultLiveEndpoint = "https://rt.services.visualstudio.com"

// Parse parses a semicolon-separated "Key=Value;..." connection string,
// recognizing InstrumentationKey, IngestionEndpoint, and LiveEndpoint.
// A string with no "=" at all is treated as the legacy bare-iKey form.
func Parse(connectionString string) (Config, error) {
	connectionString = strings.TrimSpace(connectionString)
	if connectionString == "" {
		return Config{}, perr.New("config", perr.InvalidInput, nil)
	}
	if !strings.Contains(connectionString, "=") {
		return Config{
			IKey:         connectionString,
			IngestionURL: defaultIngestionEndpoint + ingestionPath,
			LiveEndpoint: defaultLiveEndpoint,
		}, nil
	}

	ingestionEndpoint := defaultIngestionEndpoint
	liveEndpoint := defaultLiveEndpoint
	var ikey string

	for _, pair := range strings.Split(connectionString, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "instrumentationkey":
			ikey = value
		case "ingestionendpoint":
			if value != "" {
				ingestionEndpoint = strings.TrimRight(value, "/")
			}
		case "liveendpoint":
			if value != "" {
				liveEndpoint = strings.TrimRight(value, "/")
			}
		}
	}

	if ikey == "" {
		return Config{}, perr.New("config", perr.InvalidInput, nil)
	}

	return Config{
		IKey:         ikey,
		IngestionURL: ingestionEndpoint + ingestionPath,
		LiveEndpoint: liveEndpoint,
	}, nil
}
