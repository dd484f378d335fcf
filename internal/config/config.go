package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// defaultReportMunicipalities is the post-load sample queried after each population run.
const defaultReportMunicipalities = "Belo Horizonte,Congonhas,Ouro Branco,Rio Pomba,Santa Maria do Suaçuí"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	BatchSize       int

	// Statistics API configuration.
	SidraBaseURL     string
	SidraTimeout     time.Duration
	SidraMaxAttempts int

	// Population load target. An empty DSN disables the database load.
	// DBFullRefresh truncates the table before each load.
	DBDSN         string
	DBTableName   string
	DBFullRefresh bool

	ExportDir            string
	ReportUF             string
	ReportMunicipalities []string

	// Optional publish of cleaned contracts. Empty brokers disable it.
	KafkaBrokers        []string
	KafkaContractsTopic string

	// Optional S3-compatible upload of exports.
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3Region          string
	S3PublicBaseURL   string

	// DataDir holds the reference tables served by the data API.
	DataDir string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first when present; variables
// already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	sidraTimeout, err := parseDuration("SIDRA_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	maxAttempts, err := parsePositiveInt("SIDRA_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}

	fullRefresh, err := strconv.ParseBool(sharedcfg.EnvOrDefault("DB_FULL_REFRESH", "true"))
	if err != nil {
		return nil, errors.New("invalid DB_FULL_REFRESH: must be a boolean")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BatchSize:       batchSize,

		SidraBaseURL:     strings.TrimRight(sharedcfg.EnvOrDefault("SIDRA_BASE_URL", "https://apisidra.ibge.gov.br/values"), "/"),
		SidraTimeout:     sidraTimeout,
		SidraMaxAttempts: maxAttempts,

		DBDSN:         os.Getenv("DB_DSN"),
		DBTableName:   sharedcfg.EnvOrDefault("DB_TABLE_NAME", "bi_populacao_por_faixa_etaria"),
		DBFullRefresh: fullRefresh,

		ExportDir:            sharedcfg.EnvOrDefault("EXPORT_DIR", "dados_exportados"),
		ReportUF:             strings.ToUpper(sharedcfg.EnvOrDefault("REPORT_UF", "MG")),
		ReportMunicipalities: splitList(sharedcfg.EnvOrDefault("REPORT_MUNICIPALITIES", defaultReportMunicipalities)),

		KafkaBrokers:        brokers,
		KafkaContractsTopic: sharedcfg.EnvOrDefault("KAFKA_CONTRACTS_TOPIC", "municipal-contracts"),

		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          sharedcfg.EnvOrDefault("S3_REGION", "auto"),
		S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),

		DataDir: sharedcfg.EnvOrDefault("DATA_DIR", "."),
	}

	if cfg.SidraBaseURL == "" {
		return nil, errors.New("SIDRA_BASE_URL is required")
	}
	if cfg.DBTableName == "" {
		return nil, errors.New("DB_TABLE_NAME is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaContractsTopic == "" {
		return nil, errors.New("KAFKA_CONTRACTS_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether cleaned contracts should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// DBEnabled reports whether population rows should be written to the database.
func (c *Config) DBEnabled() bool {
	return c.DBDSN != ""
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
