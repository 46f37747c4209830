package config

import (
	"errors"
	"strings"
	"time"

	"github.com/romangod6/linkscout/internal/crawler"
	"github.com/romangod6/linkscout/internal/scan"
	"github.com/romangod6/linkscout/internal/utils"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port         int
		WriteTimeout string
	}
	Crawler struct {
		UserAgent       string
		RequestTimeout  string
		MaxRedirects    int
		MaxBodyBytes    int
		MaxSitemaps     int
		MaxSitemapDepth int
		Delay           string
	}
	Scan struct {
		DefaultMaxPages    int
		DefaultConcurrency int
	}
	Logging struct {
		Level  string
		Format string
		Dir    string
	}
}

// LoadConfig reads config.yaml from the given directories (default "." and
// "./config"). A missing file is fine; every key has a default and can be
// overridden through LINKSCOUT_* environment variables, e.g.
// LINKSCOUT_SERVER_PORT.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.writetimeout", "10m")
	v.SetDefault("crawler.useragent", crawler.DefaultUserAgent)
	v.SetDefault("crawler.requesttimeout", crawler.DefaultRequestTimeout.String())
	v.SetDefault("crawler.maxredirects", crawler.DefaultMaxRedirects)
	v.SetDefault("crawler.maxbodybytes", crawler.DefaultMaxBodyBytes)
	v.SetDefault("crawler.maxsitemaps", crawler.DefaultMaxSitemaps)
	v.SetDefault("crawler.maxsitemapdepth", crawler.DefaultMaxSitemapDepth)
	v.SetDefault("crawler.delay", "0s")
	v.SetDefault("scan.defaultmaxpages", scan.DefaultMaxPages)
	v.SetDefault("scan.defaultconcurrency", scan.DefaultConcurrency)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.dir", "")

	v.SetEnvPrefix("LINKSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.Crawler.RequestTimeout, crawler.DefaultRequestTimeout)
}

func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 10*time.Minute)
}

func (c *Config) GetDelay() time.Duration {
	return parseDuration(c.Crawler.Delay, 0)
}

// CrawlerConfig returns the fetch settings for crawler.NewCollector.
func (c *Config) CrawlerConfig() crawler.CrawlerConfig {
	return crawler.CrawlerConfig{
		UserAgent:      c.Crawler.UserAgent,
		RequestTimeout: c.GetRequestTimeout(),
		MaxRedirects:   c.Crawler.MaxRedirects,
		MaxBodyBytes:   c.Crawler.MaxBodyBytes,
		Parallelism:    scan.MaxConcurrency,
		Delay:          c.GetDelay(),
	}
}

func (c *Config) SitemapLimits() crawler.SitemapLimits {
	return crawler.SitemapLimits{
		MaxSitemaps: c.Crawler.MaxSitemaps,
		MaxDepth:    c.Crawler.MaxSitemapDepth,
	}
}

func (c *Config) ScanDefaults() scan.Defaults {
	return scan.Defaults{
		MaxPages:    c.Scan.DefaultMaxPages,
		Concurrency: c.Scan.DefaultConcurrency,
	}
}

func (c *Config) LoggerOptions() utils.LoggerOptions {
	return utils.LoggerOptions{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Dir:    c.Logging.Dir,
	}
}

func parseDuration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d < 0 {
		return def
	}
	return d
}
