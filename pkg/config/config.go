package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type ServerConfig struct {
	Addr            string
	Storage         string
	JWTSecret       string
	LogDir          string
	RedisAddr       string
	RedisChannel    string
	TxRetryAttempts uint
	TxRetryDelay    time.Duration
	ShutdownTimeout time.Duration
	TLSCertFile     string
	TLSKeyFile      string
}

// TLSEnabled reports whether both a certificate and a key were configured.
func (c *ServerConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// loadEnv reads config.env when present; plain environment variables win.
func loadEnv() error {
	err := godotenv.Load("config.env")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading config.env: %w", err)
	}
	return nil
}

func LoadConfigDB() (*DBConfig, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}

	port, err := intEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	maxOpen, err := intEnv("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}

	maxIdle, err := intEnv("DB_MAX_IDLE_CONNS", 25)
	if err != nil {
		return nil, err
	}

	return &DBConfig{
		Host:         stringEnv("DB_HOST", "localhost"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		SSLMode:      stringEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
	}, nil
}

func LoadConfigServer() (*ServerConfig, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}

	storage := stringEnv("STORAGE_DRIVER", StoragePostgres)
	if storage != StoragePostgres && storage != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: %q", storage)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	attempts, err := intEnv("TX_RETRY_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	if attempts < 1 {
		return nil, fmt.Errorf("invalid TX_RETRY_ATTEMPTS: %d", attempts)
	}

	delay, err := durationEnv("TX_RETRY_DELAY", 20*time.Millisecond)
	if err != nil {
		return nil, err
	}

	shutdown, err := durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	certFile, keyFile := os.Getenv("TLS_CERT_FILE"), os.Getenv("TLS_KEY_FILE")
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	return &ServerConfig{
		Addr:            stringEnv("SERVER_ADDR", ":8080"),
		Storage:         storage,
		JWTSecret:       secret,
		LogDir:          stringEnv("LOG_DIR", "logs"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisChannel:    stringEnv("REDIS_CHANNEL", "cryptovault.events"),
		TxRetryAttempts: uint(attempts),
		TxRetryDelay:    delay,
		ShutdownTimeout: shutdown,
		TLSCertFile:     certFile,
		TLSKeyFile:      keyFile,
	}, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
