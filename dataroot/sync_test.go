package dataroot

import (
	"context"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {

	t.Setenv("ARCHRUN_S3_ENDPOINT", "s3.example.com")
	t.Setenv("ARCHRUN_S3_BUCKET", "datasets")

	c := Config{Bucket: "explicit"}
	c.ConfigFromEnv()

	if c.Endpoint != "s3.example.com" {
		t.Fatal("endpoint should come from env:", c.Endpoint)
	}
	if c.Bucket != "explicit" {
		t.Fatal("explicit config must win over env:", c.Bucket)
	}
}

func TestSyncNoEndpoint(t *testing.T) {

	t.Setenv("ARCHRUN_S3_ENDPOINT", "")

	_, _, err := Sync(context.Background(), Config{}, "cifar10/", t.TempDir())
	if err == nil {
		t.Fatal("missing endpoint must error")
	}
}
