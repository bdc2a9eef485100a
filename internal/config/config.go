// Package config загружает настройки сервера и клиента из YAML-файла
// и переменных окружения (префикс BOARDSYNC_).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая конфигурация приложения
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig — настройки сервера синхронизации
type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DBPath          string `mapstructure:"db_path"`
	JWTSecret       string `mapstructure:"jwt_secret"`
	AccessTokenTTL  string `mapstructure:"access_token_ttl"`
	RateLimit       int    `mapstructure:"rate_limit"`
	RateLimitWindow string `mapstructure:"rate_limit_window"`
	MaxPayloadBytes int64  `mapstructure:"max_payload_bytes"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
}

// Addr возвращает адрес прослушивания
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetAccessTokenTTL возвращает срок жизни access token
func (s ServerConfig) GetAccessTokenTTL() time.Duration {
	d, _ := time.ParseDuration(s.AccessTokenTTL)
	return d
}

// GetRateLimitWindow возвращает окно rate limiter
func (s ServerConfig) GetRateLimitWindow() time.Duration {
	d, _ := time.ParseDuration(s.RateLimitWindow)
	return d
}

// GetReadTimeout возвращает таймаут чтения HTTP запроса
func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

// GetWriteTimeout возвращает таймаут записи HTTP ответа
func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

// ClientConfig — настройки клиента синхронизации
type ClientConfig struct {
	ServerURL    string `mapstructure:"server_url"`
	DBPath       string `mapstructure:"db_path"`
	AccessToken  string `mapstructure:"access_token"`
	PullLimit    int    `mapstructure:"pull_limit"`
	PollInterval string `mapstructure:"poll_interval"`
	RetryDelay   string `mapstructure:"retry_delay"`
	Debounce     string `mapstructure:"debounce"`
}

// GetPollInterval возвращает период фонового опроса сервера
func (c ClientConfig) GetPollInterval() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// GetRetryDelay возвращает паузу между повторами
func (c ClientConfig) GetRetryDelay() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
	return d
}

// GetDebounce возвращает окно накопления локальных правок
func (c ClientConfig) GetDebounce() time.Duration {
	d, _ := time.ParseDuration(c.Debounce)
	return d
}

// LoggingConfig — настройки логирования
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load читает конфигурацию из файла и окружения.
// Отсутствующий файл не ошибка: работают значения по умолчанию
// и переменные окружения.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BOARDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.db_path", "boardsync.db")
	// Пустые значения по умолчанию нужны, чтобы viper знал ключи
	// и подхватывал их из окружения при Unmarshal
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.access_token_ttl", "24h")
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_limit_window", "1m")
	v.SetDefault("server.max_payload_bytes", 262144)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.db_path", "boardsync-replica.db")
	v.SetDefault("client.access_token", "")
	v.SetDefault("client.pull_limit", 100)
	v.SetDefault("client.poll_interval", "5s")
	v.SetDefault("client.retry_delay", "3s")
	v.SetDefault("client.debounce", "30ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// validate проверяет согласованность duration-полей
func (c *Config) validate() error {
	durations := map[string]string{
		"server.access_token_ttl":  c.Server.AccessTokenTTL,
		"server.rate_limit_window": c.Server.RateLimitWindow,
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"client.poll_interval":     c.Client.PollInterval,
		"client.retry_delay":       c.Client.RetryDelay,
		"client.debounce":          c.Client.Debounce,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration %s=%q: %w", key, value, err)
		}
	}
	return nil
}
