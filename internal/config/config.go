package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-grader/internal/compiler"
	"github.com/noah-isme/gema-grader/internal/grading"
)

// ErrMissingJWTSecret is returned when the API is started without a signing secret.
var ErrMissingJWTSecret = errors.New("GRADER_JWT_SECRET must be provided")

// Config holds runtime configuration values for the grader.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	CORSOrigins string

	DatabaseURL string
	SQLitePath  string
	RedisURL    string
	NATSURL     string
	EventsTopic string

	JWTSecret   string
	JWTTokenTTL time.Duration

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	DashboardCacheTTL time.Duration

	Rubric           string
	UploadMaxFileKB  int
	SubmitRateLimit  int
	SubmitRateWindow time.Duration

	DockerEnabled    bool
	DockerHost       string
	JavaImage        string
	CompileTimeout   time.Duration
	RunTimeout       time.Duration
	CodeRunMemoryMB  int
	CodeRunCPUShares int
	RemoteServices   []compiler.RemoteService

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// GradingRubric resolves the configured rubric.
func (c Config) GradingRubric() (grading.Rubric, error) {
	return grading.RubricByName(c.Rubric)
}

// Load reads the API configuration. A JWT secret is required.
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		return Config{}, ErrMissingJWTSecret
	}
	return cfg, nil
}

// LoadTooling reads the configuration for command line tools, which never sign tokens.
func LoadTooling() (Config, error) {
	return load()
}

func load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Grader")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("sqlite.path", "grader.db")
	v.SetDefault("events.topic", "grader:events")
	v.SetDefault("jwt.token_ttl", "12h")
	v.SetDefault("cloudinary.folder", "grader/submissions")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("grading.rubric", grading.StrictRubric.Name)
	v.SetDefault("upload.max_file_kb", 100)
	v.SetDefault("submit.rate_limit", 10)
	v.SetDefault("submit.rate_window", "1m")
	v.SetDefault("docker.enabled", true)
	v.SetDefault("docker.image", "eclipse-temurin:17-jdk-alpine")
	v.SetDefault("compiler.compile_timeout", "10s")
	v.SetDefault("compiler.run_timeout", "15s")
	v.SetDefault("code_run_memory_mb", 256)
	v.SetDefault("code_run_cpu_shares", 512)

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	durations := map[string]time.Duration{}
	for _, key := range []string{"jwt.token_ttl", "dashboard.cache_ttl", "submit.rate_window", "compiler.compile_timeout", "compiler.run_timeout"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	remotes, err := remoteServices(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSOrigins:            v.GetString("cors.origins"),
		DatabaseURL:            v.GetString("database.url"),
		SQLitePath:             v.GetString("sqlite.path"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventsTopic:            v.GetString("events.topic"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTTokenTTL:            durations["jwt.token_ttl"],
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		DashboardCacheTTL:      durations["dashboard.cache_ttl"],
		Rubric:                 strings.ToLower(strings.TrimSpace(v.GetString("grading.rubric"))),
		UploadMaxFileKB:        v.GetInt("upload.max_file_kb"),
		SubmitRateLimit:        v.GetInt("submit.rate_limit"),
		SubmitRateWindow:       durations["submit.rate_window"],
		DockerEnabled:          v.GetBool("docker.enabled"),
		DockerHost:             v.GetString("docker.host"),
		JavaImage:              v.GetString("docker.image"),
		CompileTimeout:         durations["compiler.compile_timeout"],
		RunTimeout:             durations["compiler.run_timeout"],
		CodeRunMemoryMB:        v.GetInt("code_run_memory_mb"),
		CodeRunCPUShares:       v.GetInt("code_run_cpu_shares"),
		RemoteServices:         remotes,
		OpenAIAPIKey:           v.GetString("openai.api_key"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		OpenAIModel:            v.GetString("openai.model"),
	}

	if _, err := cfg.GradingRubric(); err != nil {
		return Config{}, err
	}

	if cfg.UploadMaxFileKB <= 0 {
		cfg.UploadMaxFileKB = 100
	}

	if cfg.CodeRunMemoryMB <= 0 {
		cfg.CodeRunMemoryMB = 256
	}

	if cfg.CodeRunCPUShares <= 0 {
		cfg.CodeRunCPUShares = 512
	}

	return cfg, nil
}

// remoteServices reads compiler.remote_services from a config file, or the
// GRADER_COMPILER_REMOTE_URLS shorthand "name=url,name=url" from the environment.
func remoteServices(v *viper.Viper) ([]compiler.RemoteService, error) {
	var services []compiler.RemoteService
	if v.IsSet("compiler.remote_services") {
		if err := v.UnmarshalKey("compiler.remote_services", &services); err != nil {
			return nil, fmt.Errorf("invalid compiler.remote_services: %w", err)
		}
	}

	for i, entry := range strings.Split(v.GetString("compiler.remote_urls"), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, url, found := strings.Cut(entry, "=")
		if !found {
			url = name
			name = fmt.Sprintf("remote-%d", i+1)
		}
		services = append(services, compiler.RemoteService{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}

	for _, service := range services {
		if !strings.HasPrefix(service.URL, "http://") && !strings.HasPrefix(service.URL, "https://") {
			return nil, fmt.Errorf("remote compile service %q has invalid url %q", service.Name, service.URL)
		}
	}

	return services, nil
}
