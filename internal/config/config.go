package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env            string         `yaml:"env" env:"ENV" env-default:"local"`
	Storage        StorageConfig  `yaml:"storage"`
	HTTP           HTTPConfig     `yaml:"http"`
	Tokens         TokensConfig   `yaml:"tokens"`
	Password       PasswordConfig `yaml:"password"`
	Throttle       ThrottleConfig `yaml:"throttle"`
	MigrationsPath string         `yaml:"migrations_path" env-default:"./migrations"`
}

type StorageConfig struct {
	// Driver is one of mongodb, sqlite or memory.
	Driver string      `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	Path   string      `yaml:"path" env:"STORAGE_PATH" env-default:"./storage/vidshare.db"`
	Mongo  MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"vidshare"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
	CORSOrigin      string        `yaml:"cors_origin" env:"CORS_ORIGIN"`
	Cookie          CookieConfig  `yaml:"cookie"`
}

type CookieConfig struct {
	Secure   bool   `yaml:"secure" env:"COOKIE_SECURE" env-default:"true"`
	SameSite string `yaml:"same_site" env-default:"lax"`
}

type TokensConfig struct {
	Access  TokenConfig `yaml:"access" env-prefix:"ACCESS_TOKEN_"`
	Refresh TokenConfig `yaml:"refresh" env-prefix:"REFRESH_TOKEN_"`
}

type TokenConfig struct {
	Secret string        `yaml:"secret" env:"SECRET" env-required:"true"`
	TTL    time.Duration `yaml:"ttl" env:"TTL" env-required:"true"`
}

type PasswordConfig struct {
	Cost int `yaml:"cost" env-default:"10"`
}

type ThrottleConfig struct {
	Enabled     bool          `yaml:"enabled" env:"THROTTLE_ENABLED"`
	RedisAddr   string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	MaxAttempts int           `yaml:"max_attempts" env-default:"5"`
	Cooldown    time.Duration `yaml:"cooldown" env-default:"15m"`
}

// MustLoad reads the config from the -config flag or CONFIG_PATH.
func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return LoadConfig(path)
}

func LoadConfig(path string) *Config {
	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file not found: " + path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}

// fetchConfigPath prefers the -config flag over the CONFIG_PATH env.
func fetchConfigPath() string {
	var res string

	if f := flag.Lookup("config"); f != nil {
		res = f.Value.String()
	} else {
		flag.StringVar(&res, "config", "", "path to config file")
		flag.Parse()
	}

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
