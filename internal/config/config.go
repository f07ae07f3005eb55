package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Portal     PortalConfig     `mapstructure:"portal"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Parser     ParserConfig     `mapstructure:"parser"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the gorm driver and its connection settings.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

// PortalConfig describes the open-data portal.
type PortalConfig struct {
	CatalogURL     string        `mapstructure:"catalog_url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// CacheConfig controls catalog snapshots and downloaded documents.
type CacheConfig struct {
	CatalogKey string `mapstructure:"catalog_key"`
	XMLOnly    bool   `mapstructure:"xml_only"`
}

type FetchConfig struct {
	Workers                int  `mapstructure:"workers"` // 0 means available parallelism
	LoadFromCache          bool `mapstructure:"load_from_cache"`
	SaveToCache            bool `mapstructure:"save_to_cache"`
	Overwrite              bool `mapstructure:"overwrite"`
	DeleteSourceAfterParse bool `mapstructure:"delete_source_after_parse"`
	SkipExisting           bool `mapstructure:"skip_existing"`
}

type ParserConfig struct {
	// TimestampOffset is the zone offset assumed for portal timestamps without one.
	TimestampOffset time.Duration `mapstructure:"timestamp_offset"`
}

type ClassifierConfig struct {
	DropRoot bool `mapstructure:"drop_root"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets come from the environment
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("portal.catalog_url", "PORTAL_CATALOG_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.ResolveEnvVars()
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/russtat.db")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "russtat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("portal.catalog_url", "https://fedstat.ru/opendata/list.xml")
	v.SetDefault("portal.connect_timeout", 10*time.Second)
	v.SetDefault("portal.read_timeout", 60*time.Second)
	v.SetDefault("portal.user_agent", "russtat/1.0")

	v.SetDefault("cache.catalog_key", "list_json.json")
	v.SetDefault("cache.xml_only", true)

	v.SetDefault("storage.type", string(StorageLocal))
	v.SetDefault("storage.dir", "./data/cache")
	v.SetDefault("storage.bucket", "russtat")
	v.SetDefault("storage.use_ssl", true)

	v.SetDefault("fetch.workers", 0)
	v.SetDefault("fetch.load_from_cache", true)
	v.SetDefault("fetch.save_to_cache", false)
	v.SetDefault("fetch.overwrite", true)
	v.SetDefault("fetch.delete_source_after_parse", true)
	v.SetDefault("fetch.skip_existing", true)

	v.SetDefault("parser.timestamp_offset", 3*time.Hour)

	v.SetDefault("classifier.drop_root", false)
}
