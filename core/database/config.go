package database

import (
	"fmt"
	"net/url"

	"github.com/m3rciful/tgscreens/core/config"
)

// DSN renders the lib/pq keyword form used by sqlx.
func DSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, portOrDefault(cfg.Port), cfg.Name, cfg.SSLMode,
	)
}

// URL renders the postgres:// form expected by golang-migrate.
func URL(cfg config.PostgresConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + portOrDefault(cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}

func portOrDefault(port string) string {
	if port == "" {
		return "5432"
	}
	return port
}
