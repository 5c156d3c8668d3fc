// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath      = pflag.String("config", ".", "Directory to look for config.toml in")
	validLogLevels  = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers  = []string{"sqlite", "postgres"}
	validRouteClass = []string{"upload", "files", "auth", "auth-send-code"}
)

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(*configPath)

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.domain", "host_domain")
	v.BindEnv("host.ssl.enabled", "host_ssl_enabled")

	v.BindEnv("jwt.secret", "jwt_secret")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("redis.addr", "redis_addr")
	v.BindEnv("redis.password", "redis_password")
	v.BindEnv("redis.db", "redis_db")

	v.BindEnv("s3.endpoint", "s3_endpoint")
	v.BindEnv("s3.region", "s3_region")
	v.BindEnv("s3.access_key_id", "s3_access_key_id")
	v.BindEnv("s3.secret_access_key", "s3_secret_access_key")
	v.BindEnv("s3.bucket", "s3_bucket")
	v.BindEnv("s3.force_path_style", "s3_force_path_style")

	v.BindEnv("mail.host", "mail_host")
	v.BindEnv("mail.port", "mail_port")
	v.BindEnv("mail.sender", "mail_sender_address")
	v.BindEnv("mail.password", "mail_password")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.force_path_style", true)

	// Sizes in bytes, durations in seconds unless the key says otherwise
	v.SetDefault("upload.max_size", int64(50)<<30)
	v.SetDefault("upload.chunk_size", int64(5)<<20)
	v.SetDefault("upload.max_chunks", 10000)
	v.SetDefault("upload.max_concurrent_files", 10)
	v.SetDefault("upload.session_ttl_hours", 24)
	v.SetDefault("upload.sweep_interval_minutes", 60)
	v.SetDefault("upload.presign_ttl_seconds", 3600)

	v.SetDefault("rate_limit.fail_open", false)
	v.SetDefault("rate_limit.upload.limit", 50)
	v.SetDefault("rate_limit.upload.interval_seconds", 60)
	v.SetDefault("rate_limit.files.limit", 100)
	v.SetDefault("rate_limit.files.interval_seconds", 60)
	v.SetDefault("rate_limit.auth.limit", 5)
	v.SetDefault("rate_limit.auth.interval_seconds", 60)
	v.SetDefault("rate_limit.auth-send-code.limit", 3)
	v.SetDefault("rate_limit.auth-send-code.interval_seconds", 60)

	v.SetDefault("auth.allowed_domains", []string{"1cbit.ru", "abt.ru"})
	v.SetDefault("auth.code_ttl_minutes", 15)

	v.SetDefault("jwt.token_ttl_hours", 72)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetString("jwt.secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	if !slices.Contains(validDBDrivers, v.GetString("db.driver")) {
		return errors.New("invalid db driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("db dsn can't be empty")
	}

	if v.GetString("s3.endpoint") == "" {
		return errors.New("s3 endpoint can't be empty")
	}
	if v.GetString("s3.access_key_id") == "" {
		return errors.New("s3 access key id can't be empty")
	}
	if v.GetString("s3.secret_access_key") == "" {
		return errors.New("s3 secret access key can't be empty")
	}
	if v.GetString("s3.bucket") == "" {
		return errors.New("s3 bucket can't be empty")
	}

	if v.GetInt64("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}
	if v.GetInt64("upload.chunk_size") <= 0 {
		return errors.New("upload.chunk_size must be bigger than 0")
	}
	if v.GetInt("upload.max_chunks") <= 0 {
		return errors.New("upload.max_chunks must be bigger than 0")
	}
	if v.GetInt("upload.max_concurrent_files") <= 0 {
		return errors.New("upload.max_concurrent_files must be bigger than 0")
	}
	if v.GetInt("upload.session_ttl_hours") <= 0 {
		return errors.New("upload.session_ttl_hours must be bigger than 0")
	}

	for _, class := range validRouteClass {
		if v.GetInt("rate_limit."+class+".limit") <= 0 {
			return fmt.Errorf("rate_limit.%s.limit must be bigger than 0", class)
		}
		if v.GetInt("rate_limit."+class+".interval_seconds") <= 0 {
			return fmt.Errorf("rate_limit.%s.interval_seconds must be bigger than 0", class)
		}
	}

	if len(v.GetStringSlice("auth.allowed_domains")) == 0 {
		return errors.New("auth.allowed_domains can't be empty")
	}

	if v.GetString("mail.sender") == "" {
		fmt.Println("[WARNING]: No mail sender configured. Verification codes will only be logged")
	}

	return nil
}
