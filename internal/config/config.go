package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full evaluation harness configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Judge      JudgeConfig      `yaml:"judge" mapstructure:"judge"`
	SLO        SLOConfig        `yaml:"latency_cost_slo" mapstructure:"latency_cost_slo"`
	Run        RunConfig        `yaml:"run" mapstructure:"run"`
	SUT        SUTConfig        `yaml:"sut_cli" mapstructure:"sut_cli"`
	Variants   VariantsConfig   `yaml:"variants" mapstructure:"variants"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PathsConfig names the six fixture and artifact directories. All six
// must exist; Validate lists every missing one.
type PathsConfig struct {
	Scenarios string `yaml:"scenarios" mapstructure:"scenarios"`
	Goldens   string `yaml:"goldens" mapstructure:"goldens"`
	Canary    string `yaml:"canary" mapstructure:"canary"`
	Judges    string `yaml:"judges" mapstructure:"judges"`
	Reports   string `yaml:"reports" mapstructure:"reports"`
	Registry  string `yaml:"registry" mapstructure:"registry"`
}

// ThresholdsConfig groups pass/fail gates per workflow.
type ThresholdsConfig struct {
	W1     W1Thresholds     `yaml:"w1" mapstructure:"w1"`
	Canary CanaryThresholds `yaml:"canary" mapstructure:"canary"`
}

// W1Thresholds gate the localization workflow. Each boolean toggles
// whether its check participates in the per-task pass verdict.
type W1Thresholds struct {
	PathMatchRequired    bool    `yaml:"path_match_required" mapstructure:"path_match_required"`
	LineIoUMin           float64 `yaml:"line_iou_min" mapstructure:"line_iou_min"`
	RequireSymbolMatch   bool    `yaml:"require_symbol_match" mapstructure:"require_symbol_match"`
	FaithfulnessRequired bool    `yaml:"faithfulness_required" mapstructure:"faithfulness_required"`
}

// CanaryThresholds gate the pre-flight canary set.
type CanaryThresholds struct {
	Require100Percent bool `yaml:"require_100_percent" mapstructure:"require_100_percent"`
}

// JudgeConfig configures the optional external judge for the
// change-impact workflow.
type JudgeConfig struct {
	EnabledForW2 bool    `yaml:"enabled_for_w2" mapstructure:"enabled_for_w2"`
	ModelName    string  `yaml:"model_name" mapstructure:"model_name"`
	MaxTokens    int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature  float64 `yaml:"temperature" mapstructure:"temperature"`
}

// SLOConfig holds latency and token cost ceilings.
type SLOConfig struct {
	P95LatencyMs     int64 `yaml:"p95_latency_ms" mapstructure:"p95_latency_ms"`
	MaxTokensIn      int64 `yaml:"max_tokens_in" mapstructure:"max_tokens_in"`
	MaxTokensOut     int64 `yaml:"max_tokens_out" mapstructure:"max_tokens_out"`
	MaxContextTokens int64 `yaml:"max_context_tokens" mapstructure:"max_context_tokens"`
}

// RunConfig configures run-level behavior.
type RunConfig struct {
	Seed             int64    `yaml:"seed" mapstructure:"seed"`
	FailFastOnCanary bool     `yaml:"fail_fast_on_canary" mapstructure:"fail_fast_on_canary"`
	ReportFormat     []string `yaml:"report_format" mapstructure:"report_format"`
}

// SUTConfig describes how to invoke the subject under test.
type SUTConfig struct {
	Cmd       string   `yaml:"cmd" mapstructure:"cmd"`
	ExtraArgs []string `yaml:"extra_args" mapstructure:"extra_args"`
	TimeoutS  int      `yaml:"timeout_s" mapstructure:"timeout_s"`
}

// VariantsConfig configures adversarial variant generation.
type VariantsConfig struct {
	Enabled      bool     `yaml:"enabled" mapstructure:"enabled"`
	Kinds        []string `yaml:"kinds" mapstructure:"kinds"`
	MaxPerSource int      `yaml:"max_per_source" mapstructure:"max_per_source"`
}

// ServerConfig configures the read-only report server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TopLevelKeys are the known top-level config sections. Anything else
// in the file is a lint error, not a load error.
var TopLevelKeys = []string{
	"paths", "thresholds", "judge", "latency_cost_slo",
	"run", "sut_cli", "variants", "server", "log",
}

// Load reads configuration from config.yaml (optional) and the
// environment, applies defaults and explicit env overrides, and
// returns an unvalidated Config. Callers validate via Validate once
// they know which directories they need.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("paths.scenarios", "eval/scenarios")
	v.SetDefault("paths.goldens", "eval/goldens")
	v.SetDefault("paths.canary", "eval/canary")
	v.SetDefault("paths.judges", "eval/judges")
	v.SetDefault("paths.reports", "eval/reports")
	v.SetDefault("paths.registry", "eval/registry")
	v.SetDefault("thresholds.w1.path_match_required", true)
	v.SetDefault("thresholds.w1.line_iou_min", 0.6)
	v.SetDefault("thresholds.w1.require_symbol_match", true)
	v.SetDefault("thresholds.w1.faithfulness_required", true)
	v.SetDefault("thresholds.canary.require_100_percent", true)
	v.SetDefault("judge.enabled_for_w2", false)
	v.SetDefault("judge.max_tokens", 512)
	v.SetDefault("judge.temperature", 0.0)
	v.SetDefault("latency_cost_slo.p95_latency_ms", 5000)
	v.SetDefault("latency_cost_slo.max_tokens_in", 20000)
	v.SetDefault("latency_cost_slo.max_tokens_out", 4000)
	v.SetDefault("latency_cost_slo.max_context_tokens", 50000)
	v.SetDefault("run.seed", 7)
	v.SetDefault("run.fail_fast_on_canary", true)
	v.SetDefault("run.report_format", []string{"json", "xlsx", "csv"})
	v.SetDefault("sut_cli.cmd", "")
	v.SetDefault("sut_cli.timeout_s", 60)
	v.SetDefault("variants.enabled", true)
	v.SetDefault("variants.kinds", []string{"case", "reexport", "test", "vendor", "nearname"})
	v.SetDefault("variants.max_per_source", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	ApplyEnvOverrides(&cfg)
	return &cfg, nil
}

// envOverride binds one environment key to one explicit setter.
type envOverride struct {
	key string
	set func(cfg *Config, val string)
}

// envOverrides enumerates every supported override statically; there
// is deliberately no reflective lookup.
var envOverrides = []envOverride{
	{"EVAL_MODEL_NAME", func(c *Config, v string) { c.Judge.ModelName = v }},
	{"EVAL_P95_LATENCY_MS", func(c *Config, v string) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.SLO.P95LatencyMs = n
		}
	}},
	{"EVAL_SUT_CMD", func(c *Config, v string) { c.SUT.Cmd = v }},
	{"EVAL_TIMEOUT_S", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.SUT.TimeoutS = n
		}
	}},
	{"EVAL_PATH_SCENARIOS", func(c *Config, v string) { c.Paths.Scenarios = v }},
	{"EVAL_PATH_GOLDENS", func(c *Config, v string) { c.Paths.Goldens = v }},
	{"EVAL_PATH_CANARY", func(c *Config, v string) { c.Paths.Canary = v }},
	{"EVAL_PATH_JUDGES", func(c *Config, v string) { c.Paths.Judges = v }},
	{"EVAL_PATH_REPORTS", func(c *Config, v string) { c.Paths.Reports = v }},
	{"EVAL_PATH_REGISTRY", func(c *Config, v string) { c.Paths.Registry = v }},
}

// ApplyEnvOverrides applies the static env override table to cfg.
func ApplyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if val := os.Getenv(o.key); val != "" {
			o.set(cfg, val)
		}
	}
}

// Validate checks numeric ranges and that every required directory
// exists. All missing directories are reported in one error.
func (c *Config) Validate() error {
	if c.Thresholds.W1.LineIoUMin < 0 || c.Thresholds.W1.LineIoUMin > 1 {
		return eris.Errorf(
			"config: thresholds.w1.line_iou_min must be in [0,1], got %v; fix it in config.yaml",
			c.Thresholds.W1.LineIoUMin,
		)
	}
	if c.SUT.TimeoutS <= 0 {
		return eris.Errorf("config: sut_cli.timeout_s must be > 0, got %d; fix it in config.yaml", c.SUT.TimeoutS)
	}

	var missing []string
	for _, d := range []struct{ name, path string }{
		{"paths.scenarios", c.Paths.Scenarios},
		{"paths.goldens", c.Paths.Goldens},
		{"paths.canary", c.Paths.Canary},
		{"paths.judges", c.Paths.Judges},
		{"paths.reports", c.Paths.Reports},
		{"paths.registry", c.Paths.Registry},
	} {
		if info, err := os.Stat(d.path); err != nil || !info.IsDir() {
			missing = append(missing, d.name+" -> "+d.path)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf(
			"config: missing required directories: %s. Create them or update paths.* in config.yaml",
			strings.Join(missing, ", "),
		)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
