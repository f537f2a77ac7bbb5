package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/EgorLis/bmpresence/internal/bmapi"
)

const (
	DefaultMaxPlayers   = 100
	DefaultInterval     = 30 * time.Second
	DefaultStagger      = 5 * time.Second
	DefaultHTTPTimeout  = 10 * time.Second
	DefaultLoginTimeout = 30 * time.Second
)

// Account - один слот бота: SERVER_ID_i / DISCORD_TOKEN_i.
type Account struct {
	Index      int // с единицы
	Token      string
	ServerID   string
	MaxPlayers int
}

type Config struct {
	Accounts []Account

	Interval      time.Duration
	Stagger       time.Duration
	UpdateOnReady bool

	ProxyURL string

	BMBaseURL    string
	BMToken      string
	HTTPTimeout  time.Duration
	LoginTimeout time.Duration

	LogLevel  string
	LogFormat string

	// Некритичные проблемы загрузки (кривые необязательные значения,
	// замененные дефолтами). Пишутся в лог, когда логгер уже создан.
	Warnings []string
}

// Error - фатальная ошибка конфигурации.
type Error struct {
	Key string
	Msg string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}

// Flags регистрирует флаги командной строки, которые читает New.
func Flags(flags *pflag.FlagSet) {
	flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("config", "", "optional YAML config file with the same keys as the environment")
	flags.String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flags.String("log-format", "", "text or json (overrides LOG_FORMAT)")
}

// New подгружает .env в окружение процесса и возвращает viper с приоритетом
// флаги > окружение > файл конфигурации > дефолты.
func New(flags *pflag.FlagSet) (*viper.Viper, error) {
	envFile, _ := flags.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			// .env по умолчанию необязателен, явно указанный - обязателен
			if !errors.Is(err, os.ErrNotExist) || flags.Changed("env-file") {
				return nil, &Error{Key: "env-file", Msg: err.Error()}
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)

	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		_ = v.BindPFlag("log_level", f)
	}
	if f := flags.Lookup("log-format"); f != nil && f.Changed {
		_ = v.BindPFlag("log_format", f)
	}

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &Error{Key: "config", Msg: err.Error()}
		}
	}
	return v, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("update_on_ready", true)
	v.SetDefault("battlemetrics_url", bmapi.DefaultBaseURL)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load читает и проверяет слоты и настройки из v. Любой *Error фатален;
// необязательные значения, которые не разобрались, заменяются дефолтом и
// попадают в Config.Warnings.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config

	rawCount := strings.TrimSpace(v.GetString("server_count"))
	if rawCount == "" {
		return Config{}, &Error{Key: "SERVER_COUNT", Msg: "not set"}
	}
	count, err := strconv.Atoi(rawCount)
	if err != nil || count <= 0 {
		return Config{}, &Error{Key: "SERVER_COUNT", Msg: fmt.Sprintf("must be a positive integer, got %q", rawCount)}
	}

	globalMax := cfg.positive(v, "max_players", DefaultMaxPlayers)
	for i := 1; i <= count; i++ {
		acc := Account{
			Index:      i,
			Token:      strings.TrimSpace(v.GetString(fmt.Sprintf("discord_token_%d", i))),
			ServerID:   strings.TrimSpace(v.GetString(fmt.Sprintf("server_id_%d", i))),
			MaxPlayers: cfg.positive(v, fmt.Sprintf("max_players_%d", i), globalMax),
		}
		cfg.Accounts = append(cfg.Accounts, acc)
	}
	if err := Validate(cfg.Accounts); err != nil {
		return Config{}, err
	}

	cfg.Interval = cfg.seconds(v, "update_interval", DefaultInterval)
	cfg.Stagger = cfg.stagger(v)
	cfg.HTTPTimeout = cfg.seconds(v, "http_timeout", DefaultHTTPTimeout)
	cfg.LoginTimeout = cfg.seconds(v, "login_timeout", DefaultLoginTimeout)
	cfg.UpdateOnReady = v.GetBool("update_on_ready")

	cfg.ProxyURL = strings.TrimSpace(v.GetString("proxy_url"))
	cfg.BMBaseURL = strings.TrimSpace(v.GetString("battlemetrics_url"))
	cfg.BMToken = strings.TrimSpace(v.GetString("battlemetrics_token"))
	cfg.LogLevel = strings.TrimSpace(v.GetString("log_level"))
	cfg.LogFormat = strings.TrimSpace(v.GetString("log_format"))
	return cfg, nil
}

// Validate отклоняет пустой список и слот без токена или id сервера.
func Validate(accounts []Account) error {
	if len(accounts) == 0 {
		return &Error{Key: "SERVER_COUNT", Msg: "no accounts configured"}
	}
	for _, a := range accounts {
		switch {
		case a.ServerID == "" && a.Token == "":
			return &Error{Key: fmt.Sprintf("SERVER_ID_%d", a.Index), Msg: fmt.Sprintf("SERVER_ID_%d and DISCORD_TOKEN_%d are not set", a.Index, a.Index)}
		case a.ServerID == "":
			return &Error{Key: fmt.Sprintf("SERVER_ID_%d", a.Index), Msg: "not set"}
		case a.Token == "":
			return &Error{Key: fmt.Sprintf("DISCORD_TOKEN_%d", a.Index), Msg: "not set"}
		}
	}
	return nil
}

func (cfg *Config) positive(v *viper.Viper, key string, def int) int {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("%s=%q is not a positive integer, using %d", strings.ToUpper(key), raw, def))
		return def
	}
	return n
}

func (cfg *Config) seconds(v *viper.Viper, key string, def time.Duration) time.Duration {
	n := cfg.positive(v, key, int(def/time.Second))
	return time.Duration(n) * time.Second
}

// stagger допускает 0: все сессии стартуют разом.
func (cfg *Config) stagger(v *viper.Viper) time.Duration {
	if strings.TrimSpace(v.GetString("stagger_delay")) == "0" {
		return 0
	}
	return cfg.seconds(v, "stagger_delay", DefaultStagger)
}
