package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("JWT_SECRET", "")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", c.Port)
	}
	if c.JWTSecret == "" {
		t.Fatal("expected development JWT secret fallback")
	}
	if c.JWTTTL != 24*time.Hour {
		t.Fatalf("JWTTTL = %v, want 24h", c.JWTTTL)
	}
	if len(c.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins = %v, want 2 entries", c.CORSOrigins)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_HOST", "db")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "9090" || c.DBHost != "db" {
		t.Fatalf("unexpected overrides: port=%q host=%q", c.Port, c.DBHost)
	}
	if c.JWTTTL != 90*time.Minute {
		t.Fatalf("JWTTTL = %v, want 90m", c.JWTTTL)
	}
	if strings.Join(c.CORSOrigins, "|") != "https://a.example|https://b.example" {
		t.Fatalf("CORSOrigins = %v", c.CORSOrigins)
	}
	if !strings.Contains(c.DSN(), "@db:5432/") {
		t.Fatalf("DSN = %q", c.DSN())
	}
}

func TestLoad_ReleaseRequiresSecret(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for release mode without JWT_SECRET")
	}
}

func TestValidate_BadPort(t *testing.T) {
	c := &Config{DBHost: "h", DBPort: "notaport", DBUser: "u", DBName: "n", JWTSecret: "s", JWTTTL: time.Hour, UploadMaxBytes: 1}
	if err := c.Validate(); err == nil {
		t.Fatal("expected invalid port error")
	}
}
