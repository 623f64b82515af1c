package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	BooksAPIURL     string
	BooksAPITimeout time.Duration
	PageSize        int
	NotifyMax       int
	NotifyTTL       time.Duration
	ViewSessionTTL  time.Duration
	CORSOrigins     []string

	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	ExportPrefix  string

	AlertSMTPHost     string
	AlertSMTPPort     int
	AlertSMTPUser     string
	AlertSMTPPassword string // may be sealed with the "enc:" prefix
	AlertFrom         string
	AlertTo           string

	SecretKey []byte // 32 bytes for AES-256; optional, base64 in env

	DocstorePort    string
	DocstoreBackend string
	MongoURI        string
	DBName          string
	SQLitePath      string

	problems []string
}

func Load() (*Config, error) {
	_ = os.Setenv("AWS_REGION", getEnv("AWS_REGION", "us-east-1"))
	c := &Config{
		Port:          getEnv("PORT", "8080"),
		BooksAPIURL:   strings.TrimRight(getEnv("BOOKS_API_URL", "http://localhost:8081/api/books"), "/"),
		S3Bucket:      getEnv("AWS_S3_BUCKET", ""),
		S3Region:      getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		ExportPrefix:  getEnv("EXPORT_PREFIX", "exports/"),

		AlertSMTPHost:     getEnv("ALERT_SMTP_HOST", ""),
		AlertSMTPUser:     getEnv("ALERT_SMTP_USER", ""),
		AlertSMTPPassword: getEnv("ALERT_SMTP_PASSWORD", ""),
		AlertFrom:         getEnv("ALERT_FROM", ""),
		AlertTo:           getEnv("ALERT_TO", ""),

		DocstorePort:    getEnv("DOCSTORE_PORT", "8081"),
		DocstoreBackend: strings.ToLower(getEnv("DOCSTORE_BACKEND", "sqlite")),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:          getEnv("MONGODB_DB", "bookdash"),
		SQLitePath:      getEnv("SQLITE_PATH", "data/docstore.db"),
	}
	if v := getEnv("CORS_ORIGINS", ""); v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}
	c.BooksAPITimeout = c.duration("BOOKS_API_TIMEOUT", 15*time.Second)
	c.PageSize = c.positiveInt("PAGE_SIZE", 10)
	c.NotifyMax = c.positiveInt("NOTIFY_MAX", 3)
	c.NotifyTTL = c.duration("NOTIFY_TTL", 5*time.Second)
	c.ViewSessionTTL = c.duration("VIEW_SESSION_TTL", 24*time.Hour)
	c.AlertSMTPPort = c.positiveInt("ALERT_SMTP_PORT", 587)

	if k := getEnv("SECRET_KEY", ""); k != "" {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil || len(key) != 32 {
			c.problems = append(c.problems, "SECRET_KEY must be 32 bytes base64 (generate with: openssl rand -base64 32)")
		} else {
			c.SecretKey = key
		}
	}
	return c, nil
}

// Validate reports every malformed or inconsistent setting.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.problems...)
	if !strings.HasPrefix(c.BooksAPIURL, "http://") && !strings.HasPrefix(c.BooksAPIURL, "https://") {
		problems = append(problems, fmt.Sprintf("BOOKS_API_URL %q must be an http(s) URL", c.BooksAPIURL))
	}
	if c.DocstoreBackend != "mongo" && c.DocstoreBackend != "sqlite" {
		problems = append(problems, fmt.Sprintf("DOCSTORE_BACKEND %q must be mongo or sqlite", c.DocstoreBackend))
	}
	if strings.HasPrefix(c.AlertSMTPPassword, "enc:") && c.SecretKey == nil {
		problems = append(problems, "ALERT_SMTP_PASSWORD is sealed but SECRET_KEY is not set")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) positiveInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.problems = append(c.problems, fmt.Sprintf("%s %q must be a positive integer", key, v))
		return fallback
	}
	return n
}

func (c *Config) duration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		c.problems = append(c.problems, fmt.Sprintf("%s %q must be a positive duration like 5s", key, v))
		return fallback
	}
	return d
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// secretEnvVars are never echoed to the log.
var secretEnvVars = map[string]bool{
	"AWS_ACCESS_KEY_ID":     true,
	"AWS_SECRET_ACCESS_KEY": true,
	"ALERT_SMTP_PASSWORD":   true,
	"SECRET_KEY":            true,
	"MONGODB_URI":           true,
}

// LogEnv logs which of keys are set so you can confirm a .env file was picked up.
func LogEnv(keys ...string) {
	for _, key := range keys {
		v := strings.TrimSpace(os.Getenv(key))
		switch {
		case v == "":
			log.Printf("env %s not set (default)", key)
		case secretEnvVars[key]:
			log.Printf("env %s loaded", key)
		default:
			log.Printf("env %s = %s", key, v)
		}
	}
}
