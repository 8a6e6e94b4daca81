package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/mediaroute/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
// Schema and ApplicationName become search_path and application_name.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	params := url.Values{}
	params.Set("sslmode", sslMode)
	if cfg.ApplicationName != "" {
		params.Set("application_name", cfg.ApplicationName)
	}
	if cfg.Schema != "" {
		params.Set("search_path", cfg.Schema)
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		params.Encode(),
	)
}
