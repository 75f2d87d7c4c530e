package config

import (
	"log"
	"os"
	"strconv"
)

// Config carries the operator-supplied settings for the auth subsystem.
type Config struct {
	HTTPAddr         string
	PostgresDSN      string // empty selects the in-memory store
	JWTSecret        string
	AccessTTLMinutes int
	RefreshTTLDays   int
	EnforcementMode  string // "strict" or "permissive"
	AdminUsername    string
	AdminPassword    string
	SeedDemoUsers    bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid int for %s, using default: %v", key, err)
		return def
	}
	return i
}

func getBool(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid bool for %s, using default: %v", key, err)
		return def
	}
	return b
}

// Load reads configuration from the environment.
func Load() Config {
	return Config{
		HTTPAddr:         getenv("MCP_HTTP_ADDR", ":8080"),
		PostgresDSN:      getenv("MCP_PG_DSN", ""),
		JWTSecret:        getenv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
		AccessTTLMinutes: getInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60),
		RefreshTTLDays:   getInt("REFRESH_TOKEN_EXPIRE_DAYS", 7),
		EnforcementMode:  getenv("RBAC_ENFORCEMENT_MODE", "strict"),
		AdminUsername:    getenv("MCP_ADMIN_USERNAME", "admin"),
		AdminPassword:    getenv("MCP_ADMIN_PASSWORD", "admin123"),
		SeedDemoUsers:    getBool("MCP_SEED_DEMO_USERS", false),
	}
}
