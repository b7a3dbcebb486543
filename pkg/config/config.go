// Package config loads the engine configuration from a YAML file with
// environment-variable overrides for endpoints and credentials. Nothing
// here is hardcoded into the pipeline: service endpoints, loop bounds,
// retry/backoff parameters, and the output directory all come from this
// surface.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard-library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GatewayConfig bounds every external call.
type GatewayConfig struct {
	MaxAttempts int      `yaml:"max_attempts" validate:"gte=1"`
	BackoffBase Duration `yaml:"backoff_base" validate:"gt=0"`
	BackoffCap  Duration `yaml:"backoff_cap" validate:"gt=0"`
	CallTimeout Duration `yaml:"call_timeout" validate:"gt=0"`
}

// RefineConfig bounds the generator-critic loop.
type RefineConfig struct {
	MaxIterations     int  `yaml:"max_iterations" validate:"gte=1"`
	GenerationRetries int  `yaml:"generation_retries" validate:"gte=0"`
	Escalate          bool `yaml:"escalate"`
}

// OpenAIConfig configures the reasoning collaborator.
type OpenAIConfig struct {
	APIKey      string `yaml:"api_key"`
	ModelLow    string `yaml:"model_low"`
	ModelMedium string `yaml:"model_medium"`
	ModelHigh   string `yaml:"model_high"`
}

// WeaviateConfig configures the literature search collaborator.
type WeaviateConfig struct {
	URL       string `yaml:"url"`
	ClassName string `yaml:"class_name"`
}

// SolverConfig configures one solver service endpoint.
type SolverConfig struct {
	URL         string `yaml:"url"`
	DatabaseRef string `yaml:"database_ref,omitempty"`
}

// SimulationConfig fixes the structural scenario applied to every run.
type SimulationConfig struct {
	GeometryRef       string  `yaml:"geometry_ref" validate:"required"`
	ThermalLoadK      float64 `yaml:"thermal_load_k" validate:"gt=0"`
	StructuralLoadMPa float64 `yaml:"structural_load_mpa" validate:"gt=0"`
}

// RedisConfig configures the optional cross-run thermo cache. An empty
// Addr disables the cache.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Config is the full configuration surface.
type Config struct {
	MaxRequestChars int              `yaml:"max_request_chars" validate:"gt=0"`
	Refine          RefineConfig     `yaml:"refine"`
	Gateway         GatewayConfig    `yaml:"gateway"`
	OpenAI          OpenAIConfig     `yaml:"openai"`
	Weaviate        WeaviateConfig   `yaml:"weaviate"`
	Thermo          SolverConfig     `yaml:"thermo"`
	FEA             SolverConfig     `yaml:"fea"`
	Simulation      SimulationConfig `yaml:"simulation"`
	Redis           RedisConfig      `yaml:"redis"`
	HTTP            HTTPConfig       `yaml:"http"`
	OutputDir       string           `yaml:"output_dir" validate:"required"`
	LogLevel        string           `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxRequestChars: 1000,
		Refine: RefineConfig{
			MaxIterations:     5,
			GenerationRetries: 2,
		},
		Gateway: GatewayConfig{
			MaxAttempts: 3,
			BackoffBase: Duration(1 * time.Second),
			BackoffCap:  Duration(30 * time.Second),
			CallTimeout: Duration(60 * time.Second),
		},
		OpenAI: OpenAIConfig{
			ModelLow:    "gpt-4o-mini",
			ModelMedium: "gpt-4o-mini",
			ModelHigh:   "gpt-4o",
		},
		Weaviate: WeaviateConfig{
			ClassName: "MaterialsDocument",
		},
		Simulation: SimulationConfig{
			GeometryRef:       "high_pressure_turbine_blade_v1",
			ThermalLoadK:      1500,
			StructuralLoadMPa: 650,
		},
		Redis: RedisConfig{
			TTL: Duration(24 * time.Hour),
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		OutputDir: "./reports",
		LogLevel:  "info",
	}
}

// Load reads path (optional, "" skips the file), applies environment
// overrides, and validates. The result is complete: zero-value fields are
// filled from Default.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides credentials and endpoints from the environment.
// Environment wins over file values so deployments never bake secrets
// into config files.
func applyEnv(cfg *Config) {
	envString("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	envString("AEROFORGE_OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	envString("AEROFORGE_WEAVIATE_URL", &cfg.Weaviate.URL)
	envString("AEROFORGE_THERMO_URL", &cfg.Thermo.URL)
	envString("AEROFORGE_FEA_URL", &cfg.FEA.URL)
	envString("AEROFORGE_REDIS_ADDR", &cfg.Redis.Addr)
	envString("AEROFORGE_OUTPUT_DIR", &cfg.OutputDir)
	envString("AEROFORGE_HTTP_ADDR", &cfg.HTTP.Addr)
	envString("AEROFORGE_LOG_LEVEL", &cfg.LogLevel)
	if v := os.Getenv("AEROFORGE_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Refine.MaxIterations = n
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
