package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean. All values
// come from the environment; absent infrastructure addresses select the
// in-memory implementations.
type Config struct {
	Addr string

	// PostgresDSN selects the Postgres stores when non-empty.
	PostgresDSN string
	// RedisAddr enables the Redis audit spill queue when non-empty.
	RedisAddr string
	// KafkaBrokers enables the Kafka audit sink when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	// VaultMasterKey seeds per-tenant key derivation for the pseudonym vault.
	VaultMasterKey []byte
	// ReceiptSigningKey signs disclosure receipts issued on resolve.
	ReceiptSigningKey []byte

	// SmallGroupThreshold is the minimum distinct evidence sources an insight
	// group needs to stay visible.
	SmallGroupThreshold int
	// ReidentRequestTTL bounds how long an approved request stays resolvable.
	ReidentRequestTTL time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                getEnv("RUNADATA_ADDR", ":8080"),
		PostgresDSN:         os.Getenv("RUNADATA_POSTGRES_DSN"),
		RedisAddr:           os.Getenv("RUNADATA_REDIS_ADDR"),
		AuditTopic:          getEnv("RUNADATA_AUDIT_TOPIC", "runadata.audit"),
		VaultMasterKey:      []byte(getEnv("RUNADATA_VAULT_MASTER_KEY", "dev-vault-key-change-in-production")),
		ReceiptSigningKey:   []byte(getEnv("RUNADATA_RECEIPT_SIGNING_KEY", "dev-receipt-key-change-in-production")),
		SmallGroupThreshold: getEnvInt("RUNADATA_SMALL_GROUP_THRESHOLD", 5),
		ReidentRequestTTL:   getEnvDuration("RUNADATA_REIDENT_TTL", 24*time.Hour),
	}
	if brokers := os.Getenv("RUNADATA_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
