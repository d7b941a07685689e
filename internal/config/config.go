package config

import (
	"os"
	"strconv"
)

// Config holds all merchant tool configuration.
type Config struct {
	DBPath    string
	LogLevel  string
	RulesFile string // optional YAML override of the classifier rule table

	Recommend RecommendConfig
	Report    ReportConfig
	Export    ExportConfig
}

// RecommendConfig holds recommendation defaults.
type RecommendConfig struct {
	Days     int
	Top      int
	MinSales int
}

// ReportConfig holds report defaults.
type ReportConfig struct {
	Months    int
	GCSBucket string
}

// ExportConfig holds BigQuery export settings.
type ExportConfig struct {
	Project string
	Dataset string
}

// Load reads configuration from environment variables with sensible defaults.
// Command-line flags override these per subcommand.
func Load() Config {
	return Config{
		DBPath:    getenv("MERCHANT_DB", "swg_merchant.db"),
		LogLevel:  getenv("MERCHANT_LOG_LEVEL", "info"),
		RulesFile: os.Getenv("MERCHANT_RULES_FILE"),
		Recommend: RecommendConfig{
			Days:     getenvInt("MERCHANT_RECOMMEND_DAYS", 30),
			Top:      getenvInt("MERCHANT_RECOMMEND_TOP", 20),
			MinSales: getenvInt("MERCHANT_MIN_SALES", 2),
		},
		Report: ReportConfig{
			Months:    getenvInt("MERCHANT_REPORT_MONTHS", 12),
			GCSBucket: os.Getenv("MERCHANT_GCS_BUCKET"),
		},
		Export: ExportConfig{
			Project: os.Getenv("MERCHANT_BQ_PROJECT"),
			Dataset: getenv("MERCHANT_BQ_DATASET", "swg_merchant"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getenvInt returns fallback for unset, malformed or non-positive values.
func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
