package config

import (
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const envPrefix = "QFORM_"

type Config struct {
	Host              string        `yaml:"host"`
	Port              uint          `yaml:"port"`
	DBUrl             string        `yaml:"db-url"`
	TokenSecret       string        `yaml:"token-secret"`
	TokenTTL          time.Duration `yaml:"token-ttl"`
	CookieName        string        `yaml:"cookie-name"`
	CookieSecure      bool          `yaml:"cookie-secure"`
	Debug             bool          `yaml:"debug"`
	LogLevel          string        `yaml:"log-level"`
	LogFormat         string        `yaml:"log-format"`
	UploadDir         string        `yaml:"upload-dir"`
	UploadMaxBytes    int64         `yaml:"upload-max-bytes"`
	UploadConcurrency int           `yaml:"upload-concurrency"`
	PublicURL         string        `yaml:"public-url"`
	CORSOrigins       []string      `yaml:"cors-origins"`
	RateLimit         int           `yaml:"rate-limit"`

	// Addr is Host and Port joined.
	Addr string `yaml:"-"`
}

func Defaults() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		DBUrl:             "qform.sqlite",
		TokenTTL:          7 * 24 * time.Hour,
		CookieName:        "nf_token",
		LogLevel:          "info",
		LogFormat:         "text",
		UploadDir:         "uploads",
		UploadMaxBytes:    10 << 20,
		UploadConcurrency: 1,
		CORSOrigins:       []string{"*"},
		RateLimit:         120,
	}
}

// setting is one configuration key, settable from a flag or the environment.
type setting struct {
	name   string
	usage  string
	isBool bool
	set    func(cfg *Config, value string) error
}

var settings = []setting{
	{name: "host", usage: "listen host name", set: func(c *Config, v string) error { c.Host = v; return nil }},
	{name: "port", usage: "listen port number", set: func(c *Config, v string) (err error) {
		p, err := strconv.ParseUint(v, 10, 16)
		c.Port = uint(p)
		return
	}},
	{name: "db-url", usage: "path to SQLite3 DB file", set: func(c *Config, v string) error { c.DBUrl = v; return nil }},
	{name: "token-secret", usage: "secret key used to sign session tokens", set: func(c *Config, v string) error { c.TokenSecret = v; return nil }},
	{name: "token-ttl", usage: "session token lifetime (e.g. 168h)", set: func(c *Config, v string) (err error) {
		c.TokenTTL, err = parseDuration(v)
		return
	}},
	{name: "cookie-name", usage: "name of the session cookie", set: func(c *Config, v string) error { c.CookieName = v; return nil }},
	{name: "cookie-secure", usage: "mark the session cookie Secure", isBool: true, set: func(c *Config, v string) (err error) {
		c.CookieSecure, err = strconv.ParseBool(v)
		return
	}},
	{name: "debug", usage: "log at DEBUG level", isBool: true, set: func(c *Config, v string) (err error) {
		c.Debug, err = strconv.ParseBool(v)
		return
	}},
	{name: "log-level", usage: "minimum log level: debug, info, warn or error", set: func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{name: "log-format", usage: "log format: text or json", set: func(c *Config, v string) error { c.LogFormat = v; return nil }},
	{name: "upload-dir", usage: "directory where uploaded files are stored", set: func(c *Config, v string) error { c.UploadDir = v; return nil }},
	{name: "upload-max-bytes", usage: "largest accepted upload, in bytes", set: func(c *Config, v string) (err error) {
		c.UploadMaxBytes, err = strconv.ParseInt(v, 10, 64)
		return
	}},
	{name: "upload-concurrency", usage: "files of one submission uploaded at once", set: func(c *Config, v string) (err error) {
		c.UploadConcurrency, err = strconv.Atoi(v)
		return
	}},
	{name: "public-url", usage: "base URL prefixed to uploaded file links", set: func(c *Config, v string) error { c.PublicURL = v; return nil }},
	{name: "cors-origins", usage: "comma separated list of allowed CORS origins", set: func(c *Config, v string) error {
		c.CORSOrigins = splitList(v)
		return nil
	}},
	{name: "rate-limit", usage: "requests per minute allowed per client IP, 0 disables", set: func(c *Config, v string) (err error) {
		c.RateLimit, err = strconv.Atoi(v)
		return
	}},
}

// Load builds the configuration from, in increasing priority: defaults, the
// YAML file named by -config, the environment (QFORM_* variables, also read
// from the file named by -env-file) and command line flags.
func Load(args []string) (cfg Config, err error) {
	fs := flag.NewFlagSet("quick-form", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML configuration file")
	envFile := fs.String("env-file", ".env", "path to a dotenv file")

	explicit := map[string]string{}
	for _, s := range settings {
		s := s
		record := func(v string) error {
			explicit[s.name] = v
			return nil
		}
		if s.isBool {
			fs.BoolFunc(s.name, s.usage, record)
		} else {
			fs.Func(s.name, s.usage, record)
		}
	}
	if err = fs.Parse(args); err != nil {
		return
	}

	cfg = Defaults()
	if *configFile != "" {
		if err = loadFile(*configFile, &cfg); err != nil {
			return
		}
	}
	if err = loadEnv(*envFile, &cfg); err != nil {
		return
	}
	for _, s := range settings {
		if v, ok := explicit[s.name]; ok {
			if err = s.set(&cfg, v); err != nil {
				return cfg, errors.Wrapf(err, "flag -%s", s.name)
			}
		}
	}

	cfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port)))
	err = cfg.Validate()
	return
}

// Validate checks the values that have no usable default.
func (cfg Config) Validate() error {
	switch {
	case cfg.TokenSecret == "":
		return errors.New("missing parameter -token-secret")
	case cfg.TokenTTL <= 0:
		return errors.New("-token-ttl must be positive")
	case cfg.UploadConcurrency < 1:
		return errors.New("-upload-concurrency must be at least 1")
	case cfg.LogFormat != "text" && cfg.LogFormat != "json":
		return errors.Errorf("unknown log format %q", cfg.LogFormat)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	if err = yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}

// loadEnv reads the dotenv file when there is one; variables already set in
// the process environment win over it.
func loadEnv(envFile string, cfg *Config) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err = godotenv.Load(envFile); err != nil {
				return errors.Wrapf(err, "load %s", envFile)
			}
		}
	}
	for _, s := range settings {
		key := envPrefix + strings.ToUpper(strings.ReplaceAll(s.name, "-", "_"))
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		if err := s.set(cfg, v); err != nil {
			return errors.Wrapf(err, "env %s", key)
		}
	}
	return nil
}

// parseDuration accepts Go durations or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseUint(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (cfg Config) Url() (url string) {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
