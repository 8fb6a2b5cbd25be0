// Package config exposes the runtime settings of the hub. Values come from
// environment variables, optionally seeded from a .env file at startup.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

// LoadEnv reads key=value pairs from the given files into the process
// environment. Variables that are already set win. Missing files are ignored.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", f, err)
		}
	}
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

// GetTitle returns the display name shown on every page.
func GetTitle() string {
	return getString("HUB_TITLE", "Games Hub")
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("HUB_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("HUB_DEBUG") == "true"
}

func GetDBFolderPath() string {
	return getString("HUB_DB_FOLDER", "db")
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	return getString("HUB_LOG_FOLDER", "log")
}

func GetUploadsFolder() string {
	return getString("HUB_UPLOADS_FOLDER", "uploads")
}

// GetTempFolder returns the staging folder for files a user uploaded but
// has not attached to a dataset yet.
func GetTempFolder(userId int) string {
	return filepath.Join(GetTempRoot(), strconv.Itoa(userId))
}

// GetTempRoot holds every user's staging folder.
func GetTempRoot() string {
	return filepath.Join(GetUploadsFolder(), "temp")
}

// GetDatasetFolder returns the permanent folder of a dataset's files.
func GetDatasetFolder(userId, datasetId int) string {
	return filepath.Join(GetUploadsFolder(), fmt.Sprintf("user_%d", userId), fmt.Sprintf("dataset_%d", datasetId))
}

func GetListen() string {
	return getString("HUB_LISTEN", "")
}

func GetPort() int {
	return getInt("HUB_PORT", 5000)
}

// GetCertFile and GetKeyFile name the TLS key pair. The server speaks plain
// HTTP unless both are set.
func GetCertFile() string {
	return os.Getenv("HUB_CERT_FILE")
}

func GetKeyFile() string {
	return os.Getenv("HUB_KEY_FILE")
}

// GetSecretKey returns the key used to sign session cookies. An empty value
// makes the server generate a random key on every start.
func GetSecretKey() string {
	return os.Getenv("HUB_SECRET_KEY")
}

// GetRedisAddr returns the address of an external Redis server. When empty
// the hub runs an embedded one.
func GetRedisAddr() string {
	return os.Getenv("HUB_REDIS_ADDR")
}

// GetSessionMaxAge returns the lifetime of a session cookie in minutes.
func GetSessionMaxAge() int {
	return getInt("HUB_SESSION_MAX_AGE", 60)
}

// GetRememberMaxAge returns the lifetime of a "remember me" session.
func GetRememberMaxAge() time.Duration {
	return time.Duration(getInt("HUB_REMEMBER_DAYS", 30)) * 24 * time.Hour
}

// GetPendingLoginTTL bounds how long a password-checked login may wait for
// its second factor.
func GetPendingLoginTTL() time.Duration {
	return getDuration("HUB_PENDING_LOGIN_TTL", 5*time.Minute)
}

// GetAuthRateLimit is the number of login, signup and code attempts allowed
// per client and minute. Zero disables the limit.
func GetAuthRateLimit() int {
	return getInt("HUB_AUTH_RATE_LIMIT", 30)
}

// GetAuditRetentionDays is how long audit entries are kept.
func GetAuditRetentionDays() int {
	return getInt("HUB_AUDIT_RETENTION_DAYS", 90)
}

// IsMetricsEnabled exposes the Prometheus endpoint at /metrics.
func IsMetricsEnabled() bool {
	return os.Getenv("HUB_METRICS") == "true"
}

func GetTotpIssuer() string {
	return getString("TOTP_ISSUER", "Games Hub")
}

// GetFakenodoURL returns the deposition API endpoint. A bare service URL
// gets the depositions path appended.
func GetFakenodoURL() string {
	url := firstEnv("FAKENODO_URL", "fakenodo_url", "FAKENODO_BASE_URL", "fakenodo_base_url")
	if url == "" {
		url = "http://localhost:5001"
	}
	url = strings.TrimRight(url, "/")
	if !strings.Contains(url, "deposit/depositions") {
		url += "/deposit/depositions"
	}
	return url
}

func GetFakenodoPort() int {
	return getInt("FAKENODO_PORT", 5001)
}

func GetZenodoRetryTotal() int {
	return getInt("ZENODO_RETRY_TOTAL", 5)
}

// GetZenodoBackoff returns the initial retry interval of the deposition client.
func GetZenodoBackoff() time.Duration {
	f, err := strconv.ParseFloat(os.Getenv("ZENODO_BACKOFF"), 64)
	if err != nil || f <= 0 {
		f = 1.5
	}
	return time.Duration(f * float64(time.Second))
}

// GetZenodoRateWait is the pause after a 429 without a Retry-After header.
func GetZenodoRateWait() time.Duration {
	return time.Duration(getInt("ZENODO_RATEWAIT", 5)) * time.Second
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
