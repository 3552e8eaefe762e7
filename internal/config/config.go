package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthHMACSecret string
	AdminSecret    string // X-Admin-Secret for the operator endpoints; empty disables them

	// Dev convenience: honor the role claim when the user row is missing.
	AllowClaimFallback bool

	AdminUser     string
	AdminPassword string // seeded at startup if the user does not exist

	CORSOrigins []string

	LogLevel string
}

// SetDefaults registers every key with its default so viper's env binding
// (OMR_* prefix) picks all of them up.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeDev))
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "")
	v.SetDefault("auth_hmac_secret", "dev-secret-change-me")
	v.SetDefault("admin_secret", "")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_password", "")
	v.SetDefault("cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("log_level", "info")
}

func FromViper(v *viper.Viper) Config {
	mode := Mode(v.GetString("mode"))
	if mode != ModeProd {
		mode = ModeDev
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           v.GetString("http_addr"),
		DBDriver:           v.GetString("db_driver"),
		DBDSN:              v.GetString("db_dsn"),
		AuthHMACSecret:     v.GetString("auth_hmac_secret"),
		AdminSecret:        v.GetString("admin_secret"),
		AllowClaimFallback: mode == ModeDev,
		AdminUser:          v.GetString("admin_user"),
		AdminPassword:      v.GetString("admin_password"),
		CORSOrigins:        splitCSV(v.GetString("cors_origins")),
		LogLevel:           v.GetString("log_level"),
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
