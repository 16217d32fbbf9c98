package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses poll interval durations
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced at startup so a
// misconfigured deployment fails immediately instead of at the first update.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	BotToken        string        // Telegram bot API token
	InternalSecret  string        // secret used to sign the worker's callback token
	CallbackBaseURL string        // base URL the worker posts outcomes to (usually loopback)
	AdminChatID     string        // chat id allowed to run operator commands
	AdminSecretHash string        // bcrypt hash of the operator bypass password (optional)
	OperatorLoginID string        // rail account used when the bypass password is entered
	OperatorSecret  string        // password for the operator rail account
	AllowList       string        // comma separated login ids honoured when MySQL is absent
	DBUser          string        // database username (optional; empty disables MySQL)
	DBPass          string        // database password
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	MaxAttempts     int           // polling attempts before a job gives up
	PollInterval    time.Duration // delay between polling rounds
	ErrorThreshold  int           // consecutive provider errors before a relogin
	ErrorCooldown   time.Duration // quiet period that resets the error streak
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Database variables
// are optional as a group: when DB_USER is empty the bot runs without
// MySQL and falls back to the static allow list.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		BotToken:        must("BOT_TOKEN"),
		InternalSecret:  must("INTERNAL_SECRET"),
		CallbackBaseURL: envStr("CALLBACK_BASE_URL", "http://127.0.0.1:"+os.Getenv("APP_PORT")),
		AdminChatID:     os.Getenv("ADMIN_CHAT_ID"),
		AdminSecretHash: os.Getenv("ADMIN_SECRET_HASH"),
		OperatorLoginID: os.Getenv("OPERATOR_LOGIN_ID"),
		OperatorSecret:  os.Getenv("OPERATOR_SECRET"),
		AllowList:       os.Getenv("ALLOW_LIST"),
		DBUser:          os.Getenv("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"),
		DBHost:          envStr("DB_HOST", "localhost"),
		DBPort:          envStr("DB_PORT", "3306"),
		DBName:          envStr("DB_NAME", "railbot"),
		MaxAttempts:     envInt("MAX_ATTEMPTS", 1000),
		PollInterval:    envDur("POLL_INTERVAL", time.Second),
		ErrorThreshold:  envInt("ERROR_THRESHOLD", 10),
		ErrorCooldown:   envDur("ERROR_COOLDOWN", 5*time.Minute),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
