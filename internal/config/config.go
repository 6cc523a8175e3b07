package config

import (
	"os"
	"strings"
)

// Config application configuration
type Config struct {
	ServerAddress string // ComfyUI server address (host:port or full URL)
	WorkflowPath  string // default workflow JSON file
	SaveImages    bool   // write result images to disk
	S3            S3Config
}

// S3Config object-storage upload configuration
type S3Config struct {
	Enabled   bool
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string // optional custom endpoint (S3-compatible stores)
}

// IsComplete reports whether enough fields are set to build an uploader.
func (s S3Config) IsComplete() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

// Load loads configuration from the environment.
func Load() *Config {
	return &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", "127.0.0.1:8188"),
		WorkflowPath:  getEnv("DEFAULT_WORKFLOW", "workflow1.json"),
		SaveImages:    getEnvBool("SAVE_IMAGES", true),
		S3: S3Config{
			Enabled:   getEnvBool("UPLOAD_TO_S3", false),
			Bucket:    getEnv("S3_BUCKET_NAME", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Region:    getEnv("AWS_REGION", "us-west-2"),
			Endpoint:  getEnv("S3_ENDPOINT_URL", ""),
		},
	}
}

// getEnv gets environment variable, returns default value if not exists
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets boolean environment variable, returns default value if not exists
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return ParseBool(value)
}

// ParseBool interprets yes/true/1/y (any case) as true.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}
