package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/cli/go-gh/v2/pkg/repository"
	"github.com/joho/godotenv"
	"github.com/ryo246912/gh-issues-export/internal/github"
	"github.com/spf13/viper"
)

// Keys shared by flags, environment and the config file
const (
	KeyAPIURL          = "api_url"
	KeyGraphQLURL      = "graphql_url"
	KeyRepo            = "repo"
	KeyToken           = "token"
	KeyIncludeComments = "include_comments"
	KeyIncludeStatus   = "include_status"
	KeyProjectNumber   = "project_number"
	KeyOutput          = "output"
	KeyFields          = "fields"
	KeyMaxRetries      = "max_retries"
	KeyBackoff         = "backoff"
	KeyWaitRateLimit   = "wait_rate_limit"
	KeyConcurrency     = "concurrency"
	KeyTimeout         = "timeout"
	KeyVerbose         = "verbose"
	KeyLogFormat       = "log_format"
)

const (
	DefaultAPIURL     = "https://api.github.com"
	DefaultOutput     = "github_issues.csv"
	DefaultConfigName = ".gh-issues-export"
	DefaultEnvFile    = ".env"

	DefaultBackoff = 2 * time.Second
	DefaultTimeout = 30 * time.Second
)

var (
	repoPattern  = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	classicToken = regexp.MustCompile(`^[A-Za-z0-9_-]{40,}$`)

	// overridable in tests
	currentRepository = repository.Current
	tokenForHost      = auth.TokenForHost
)

var envBindings = map[string][]string{
	KeyAPIURL:          {"GHES_API_URL"},
	KeyGraphQLURL:      {"GH_GRAPHQL_URL"},
	KeyRepo:            {"GH_REPO"},
	KeyToken:           {"GH_TOKEN", "GITHUB_TOKEN"},
	KeyIncludeComments: {"GH_INCLUDE_COMMENTS"},
	KeyIncludeStatus:   {"GH_INCLUDE_STATUS"},
	KeyProjectNumber:   {"GH_PROJECT_NUMBER"},
	KeyOutput:          {"GH_OUTPUT"},
	KeyFields:          {"GH_FIELDS"},
	KeyMaxRetries:      {"GH_MAX_RETRIES"},
	KeyBackoff:         {"GH_BACKOFF"},
	KeyWaitRateLimit:   {"GH_WAIT_RATE_LIMIT"},
	KeyConcurrency:     {"GH_CONCURRENCY"},
	KeyTimeout:         {"GH_TIMEOUT"},
	KeyLogFormat:       {"GH_LOG_FORMAT"},
}

// Config is the resolved run configuration
type Config struct {
	APIURL          string
	GraphQLURL      string
	Repository      repository.Repository
	Token           string
	IncludeComments bool
	IncludeStatus   bool
	ProjectNumber   int
	Output          string
	Fields          []string
	MaxRetries      int
	Backoff         time.Duration
	WaitRateLimit   bool
	Concurrency     int
	Timeout         time.Duration
	Verbose         bool
	LogFormat       string
}

// New returns a viper instance with defaults and environment bindings
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAPIURL, DefaultAPIURL)
	v.SetDefault(KeyIncludeComments, true)
	v.SetDefault(KeyIncludeStatus, true)
	v.SetDefault(KeyProjectNumber, 2)
	v.SetDefault(KeyOutput, DefaultOutput)
	v.SetDefault(KeyMaxRetries, 3)
	v.SetDefault(KeyBackoff, DefaultBackoff)
	v.SetDefault(KeyWaitRateLimit, true)
	v.SetDefault(KeyConcurrency, 5)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyLogFormat, "text")

	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

// LoadDotEnv loads a .env file into the process environment. A missing
// file is not an error; existing variables are never overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ReadConfigFile reads an explicit config file, or the optional
// .gh-issues-export.yaml in the working directory when path is empty
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetConfigName(DefaultConfigName)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load resolves and validates the configuration. The repository falls back
// to the current git remote and the token to gh's stored credentials.
func Load(v *viper.Viper, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg := &Config{
		APIURL:          strings.TrimSpace(v.GetString(KeyAPIURL)),
		GraphQLURL:      strings.TrimSpace(v.GetString(KeyGraphQLURL)),
		Token:           strings.TrimSpace(v.GetString(KeyToken)),
		IncludeComments: v.GetBool(KeyIncludeComments),
		IncludeStatus:   v.GetBool(KeyIncludeStatus),
		ProjectNumber:   v.GetInt(KeyProjectNumber),
		Output:          v.GetString(KeyOutput),
		Fields:          splitList(v.Get(KeyFields)),
		MaxRetries:      v.GetInt(KeyMaxRetries),
		Backoff:         v.GetDuration(KeyBackoff),
		WaitRateLimit:   v.GetBool(KeyWaitRateLimit),
		Concurrency:     v.GetInt(KeyConcurrency),
		Timeout:         v.GetDuration(KeyTimeout),
		Verbose:         v.GetBool(KeyVerbose),
		LogFormat:       v.GetString(KeyLogFormat),
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = github.GraphQLURLFor(cfg.APIURL)
	}

	repo, err := resolveRepository(v.GetString(KeyRepo))
	if err != nil {
		return nil, err
	}
	cfg.Repository = repo

	if cfg.Token == "" {
		host, err := apiHost(cfg.APIURL)
		if err != nil {
			return nil, err
		}
		cfg.Token, _ = tokenForHost(host)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !classicToken.MatchString(cfg.Token) {
		logger.Warn("GitHub token does not look like a classic token; continuing anyway")
	}
	return cfg, nil
}

// Validate checks the resolved values
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("GitHub token is required: set GH_TOKEN or GITHUB_TOKEN, or run 'gh auth login'")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if c.Backoff < 0 {
		return fmt.Errorf("backoff must be >= 0")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1")
	}
	if c.IncludeStatus && c.ProjectNumber <= 0 {
		return fmt.Errorf("project_number must be > 0 when project status is included")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", c.LogFormat)
	}
	return nil
}

// FullName returns "owner/name"
func (c *Config) FullName() string {
	return c.Repository.Owner + "/" + c.Repository.Name
}

// ClientOptions maps the configuration onto the GitHub client options
func (c *Config) ClientOptions(logger *slog.Logger) github.Options {
	return github.Options{
		APIURL:          c.APIURL,
		GraphQLURL:      c.GraphQLURL,
		Token:           c.Token,
		MaxRetries:      c.MaxRetries,
		Backoff:         c.Backoff,
		WaitOnRateLimit: c.WaitRateLimit,
		Timeout:         c.Timeout,
		Logger:          logger,
	}
}

// ParseRepository validates an "owner/name" string
func ParseRepository(name string) (repository.Repository, error) {
	name = strings.TrimSpace(name)
	if !repoPattern.MatchString(name) {
		return repository.Repository{}, fmt.Errorf("invalid repository %q: expected owner/name", name)
	}
	repo, err := repository.Parse(name)
	if err != nil {
		return repository.Repository{}, fmt.Errorf("invalid repository %q: %w", name, err)
	}
	return repo, nil
}

func resolveRepository(name string) (repository.Repository, error) {
	if strings.TrimSpace(name) != "" {
		return ParseRepository(name)
	}
	repo, err := currentRepository()
	if err != nil {
		return repository.Repository{}, fmt.Errorf("failed to get current repository (use --repo or GH_REPO): %w", err)
	}
	return repo, nil
}

func apiHost(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid API URL %q", apiURL)
	}
	host := u.Hostname()
	if host == "api.github.com" {
		return "github.com", nil
	}
	return host, nil
}

func splitList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(val, ",")
	case []string:
		for _, s := range val {
			parts = append(parts, strings.Split(s, ",")...)
		}
	case []any:
		for _, s := range val {
			parts = append(parts, strings.Split(fmt.Sprint(s), ",")...)
		}
	default:
		parts = strings.Split(fmt.Sprint(val), ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EnvNames returns the environment variables bound to a key
func EnvNames(key string) []string {
	return envBindings[key]
}
