// Package config provides configuration helpers and TOML parsing.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names recognized by every subcommand.
const (
	EnvAPIURL       = "GRADEBOARD_API_URL"
	EnvInstructorID = "GRADEBOARD_INSTRUCTOR_ID"
	EnvStudentEmail = "GRADEBOARD_STUDENT_EMAIL"
	EnvHTTPTimeout  = "GRADEBOARD_HTTP_TIMEOUT"
)

// LoadDotenv loads a .env file from the working directory when present.
// A missing file is not an error; already-set variables win.
func LoadDotenv() {
	_ = godotenv.Load()
}

// GetEnv retrieves an environment variable or returns a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetDurationEnv retrieves a duration environment variable or returns a
// default value. Supports formats like "30s", "5m".
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
