package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Bot      BotConfig
	Payment  PaymentConfig
	Trial    TrialConfig
	Traffic  TrafficConfig
	Jobs     JobsConfig
	API      APIConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type BotConfig struct {
	Token   string
	AdminID int64
}

type PaymentConfig struct {
	CryptoPayToken string
	CryptoPayURL   string
	FiatCurrency   string
}

// TrialConfig governs the free-trial allotment.
type TrialConfig struct {
	Enabled   bool
	Days      int
	TrafficGB int
}

// TrafficConfig carries the traffic-accounting policy literals.
type TrafficConfig struct {
	DefaultLimitGB int
	FloorGB        int
}

// JobsConfig holds background job cadence and thresholds.
type JobsConfig struct {
	TrafficUpdateEvery  time.Duration
	PurgeEvery          time.Duration
	ExpiryGraceDays     int
	MonthlyResetMinDays int
	NotifyBaseInterval  time.Duration
	NotifyJitter        time.Duration
	NotifyMinInterval   time.Duration
	ExpiryWarnDays      int
	ExpiredLookbackDays int
}

type APIConfig struct {
	Key         string
	SSLCertsDir string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CRYPTO_PAY_URL", "https://pay.crypt.bot/api")
	viper.SetDefault("FIAT_CURRENCY", "RUB")
	viper.SetDefault("TRIAL_ENABLED", true)
	viper.SetDefault("TRIAL_DAYS", 1)
	viper.SetDefault("TRIAL_TRAFFIC_GB", 10)
	viper.SetDefault("TRAFFIC_DEFAULT_GB", 100)
	viper.SetDefault("TRAFFIC_FLOOR_GB", 50)
	viper.SetDefault("TRAFFIC_UPDATE_EVERY", "1h")
	viper.SetDefault("PURGE_EVERY", "6h")
	viper.SetDefault("EXPIRY_GRACE_DAYS", 3)
	viper.SetDefault("MONTHLY_RESET_MIN_DAYS", 30)
	viper.SetDefault("NOTIFY_BASE_INTERVAL", "3h")
	viper.SetDefault("NOTIFY_JITTER", "10m")
	viper.SetDefault("NOTIFY_MIN_INTERVAL", "15m")
	viper.SetDefault("EXPIRY_WARN_DAYS", 3)
	viper.SetDefault("EXPIRED_LOOKBACK_DAYS", 1)
	viper.SetDefault("SSL_CERTS_DIR", "ssl-certs")

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Bot: BotConfig{
			Token:   viper.GetString("BOT_TOKEN"),
			AdminID: viper.GetInt64("BOT_ADMIN_ID"),
		},
		Payment: PaymentConfig{
			CryptoPayToken: viper.GetString("CRYPTO_PAY_TOKEN"),
			CryptoPayURL:   viper.GetString("CRYPTO_PAY_URL"),
			FiatCurrency:   viper.GetString("FIAT_CURRENCY"),
		},
		Trial: TrialConfig{
			Enabled:   viper.GetBool("TRIAL_ENABLED"),
			Days:      viper.GetInt("TRIAL_DAYS"),
			TrafficGB: viper.GetInt("TRIAL_TRAFFIC_GB"),
		},
		Traffic: TrafficConfig{
			DefaultLimitGB: viper.GetInt("TRAFFIC_DEFAULT_GB"),
			FloorGB:        viper.GetInt("TRAFFIC_FLOOR_GB"),
		},
		Jobs: JobsConfig{
			TrafficUpdateEvery:  viper.GetDuration("TRAFFIC_UPDATE_EVERY"),
			PurgeEvery:          viper.GetDuration("PURGE_EVERY"),
			ExpiryGraceDays:     viper.GetInt("EXPIRY_GRACE_DAYS"),
			MonthlyResetMinDays: viper.GetInt("MONTHLY_RESET_MIN_DAYS"),
			NotifyBaseInterval:  viper.GetDuration("NOTIFY_BASE_INTERVAL"),
			NotifyJitter:        viper.GetDuration("NOTIFY_JITTER"),
			NotifyMinInterval:   viper.GetDuration("NOTIFY_MIN_INTERVAL"),
			ExpiryWarnDays:      viper.GetInt("EXPIRY_WARN_DAYS"),
			ExpiredLookbackDays: viper.GetInt("EXPIRED_LOOKBACK_DAYS"),
		},
		API: APIConfig{
			Key:         viper.GetString("API_KEY"),
			SSLCertsDir: viper.GetString("SSL_CERTS_DIR"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Bot.Token == "" {
		log.Println("WARNING: BOT_TOKEN is not set")
	}
	if cfg.Payment.CryptoPayToken == "" {
		log.Println("WARNING: CRYPTO_PAY_TOKEN is not set")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=UTC"
}
