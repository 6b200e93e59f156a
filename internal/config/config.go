package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	LogMode string // dev|prod

	DBDriver string // sqlite|postgres
	DBDSN    string

	BlobDriver      string // fs|s3
	BlobBasePath    string // for fs
	BlobS3Bucket    string
	BlobS3Region    string
	BlobS3Endpoint  string // optional, e.g. MinIO
	BlobS3PathStyle bool

	// ArchiveWorkbooks stores every successfully ingested workbook in the blob store.
	ArchiveWorkbooks bool

	MetricsTextfile    string // node-exporter textfile path; empty disables export
	ScoringConcurrency int
	SiteID             string
}

// Load reads optional .env files (missing ones are ignored) and then the
// process environment.
func Load(files ...string) Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		LogMode:            envOr("LOG_MODE", "dev"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		BlobDriver:         envOr("BLOB_DRIVER", "fs"),
		BlobBasePath:       envOr("BLOB_BASE_PATH", "./data"),
		BlobS3Bucket:       os.Getenv("BLOB_S3_BUCKET"),
		BlobS3Region:       envOr("BLOB_S3_REGION", "us-east-1"),
		BlobS3Endpoint:     os.Getenv("BLOB_S3_ENDPOINT"),
		BlobS3PathStyle:    envBool("BLOB_S3_PATH_STYLE", false),
		ArchiveWorkbooks:   envBool("ARCHIVE_WORKBOOKS", true),
		MetricsTextfile:    os.Getenv("METRICS_TEXTFILE"),
		ScoringConcurrency: envInt("SCORING_CONCURRENCY", 4),
		SiteID:             envOr("SITE_ID", "local"),
	}
}

func envOr(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
