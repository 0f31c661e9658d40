package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Config struct {
	ServerAddr     string
	AllowedOrigins []string
	// DatabaseDSN is optional. Empty disables the scheduled session API.
	DatabaseDSN string
}

func NewConfig(serverAddr string, allowedOrigins []string, databaseDSN string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	origins, err := parseOrigins(allowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("allowed origins: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		AllowedOrigins: origins,
		DatabaseDSN:    databaseDSN,
	}, nil
}

func (c *Config) PersistenceEnabled() bool {
	return c.DatabaseDSN != ""
}

func parseOrigins(raw []string) ([]string, error) {
	var origins []string
	for _, o := range raw {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}

		u, err := url.Parse(o)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", o, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("origin %q must use http or https", o)
		}
		if u.Host == "" || (u.Path != "" && u.Path != "/") {
			return nil, fmt.Errorf("origin %q must be scheme://host[:port]", o)
		}

		origins = append(origins, o)
	}

	if len(origins) == 0 {
		return nil, fmt.Errorf("at least one origin is required")
	}

	return origins, nil
}
