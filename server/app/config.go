package app

import (
	"flag"
	"os"
	"time"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type Config struct {
	Addr    string
	DataDir string
	// RedisAddr switches score storage to redis when set.
	RedisAddr   string
	RedisPrefix string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig reads NAAGA_* environment variables, falling back to local defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         getenv("NAAGA_ADDR", ":8080"),
		DataDir:      getenv("NAAGA_DATA_DIR", "data"),
		RedisAddr:    getenv("NAAGA_REDIS_ADDR", ""),
		RedisPrefix:  getenv("NAAGA_REDIS_PREFIX", "naaga:rank"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// BindFlags lets command line flags override the environment.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.DataDir, "data", c.DataDir, "directory for users.json, jwt.key and scores.json")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "redis address; empty keeps scores in memory")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", c.RedisPrefix, "redis key prefix")
}
