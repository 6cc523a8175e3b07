package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_ADDRESS", "DEFAULT_WORKFLOW", "SAVE_IMAGES", "UPLOAD_TO_S3",
		"S3_BUCKET_NAME", "S3_ACCESS_KEY", "S3_SECRET_KEY", "AWS_REGION", "S3_ENDPOINT_URL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "127.0.0.1:8188", cfg.ServerAddress)
	assert.Equal(t, "workflow1.json", cfg.WorkflowPath)
	assert.True(t, cfg.SaveImages)
	assert.False(t, cfg.S3.Enabled)
	assert.Equal(t, "us-west-2", cfg.S3.Region)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", "gpu-box:8188")
	t.Setenv("DEFAULT_WORKFLOW", "workflows/sdxl.json")
	t.Setenv("SAVE_IMAGES", "no")
	t.Setenv("UPLOAD_TO_S3", "yes")
	t.Setenv("S3_BUCKET_NAME", "renders")
	t.Setenv("S3_ACCESS_KEY", "AKIA123")
	t.Setenv("S3_SECRET_KEY", "secret")
	t.Setenv("AWS_REGION", "eu-central-1")
	t.Setenv("S3_ENDPOINT_URL", "https://minio.local:9000")

	cfg := Load()
	assert.Equal(t, "gpu-box:8188", cfg.ServerAddress)
	assert.Equal(t, "workflows/sdxl.json", cfg.WorkflowPath)
	assert.False(t, cfg.SaveImages)
	assert.True(t, cfg.S3.Enabled)
	assert.Equal(t, "renders", cfg.S3.Bucket)
	assert.Equal(t, "eu-central-1", cfg.S3.Region)
	assert.Equal(t, "https://minio.local:9000", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.IsComplete())
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"yes", "YES", "true", "True", "1", "y", " y "} {
		assert.True(t, ParseBool(v), "%q should parse true", v)
	}
	for _, v := range []string{"no", "false", "0", "n", "", "maybe"} {
		assert.False(t, ParseBool(v), "%q should parse false", v)
	}
}

func TestS3Config_IsComplete(t *testing.T) {
	complete := S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}
	assert.True(t, complete.IsComplete())

	assert.False(t, S3Config{AccessKey: "a", SecretKey: "s"}.IsComplete())
	assert.False(t, S3Config{Bucket: "b", SecretKey: "s"}.IsComplete())
	assert.False(t, S3Config{Bucket: "b", AccessKey: "a"}.IsComplete())
}
