// Package config loads and validates the structured configuration document
// described in spec §6, using viper for layered file/env resolution and
// godotenv for local .env files — mirrored from the teacher's own
// internal/config package.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full configuration document. Each top-level section
// corresponds to one named in spec §6.
type Config struct {
	Source            SourceConfig            `mapstructure:"source"`
	SecondaryProvider  SecondaryProviderConfig `mapstructure:"secondary_provider"`
	Analysis           AnalysisConfig          `mapstructure:"analysis"`
	LLM                LLMConfig               `mapstructure:"llm"`
	VulnerabilityScan  VulnerabilityScanConfig `mapstructure:"vulnerability_scanning"`
	RiskScoring        RiskScoringConfig       `mapstructure:"risk_scoring"`
	Output             OutputConfig            `mapstructure:"output"`
}

// SourceConfig configures RepoSource (C2) access.
type SourceConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"api_base_url"`
}

// SecondaryProviderConfig configures the fallback LLM provider.
type SecondaryProviderConfig struct {
	Region             string `mapstructure:"region"`
	Model              string `mapstructure:"model"`
	CredentialProfile  string `mapstructure:"credential_profile"`
}

// AnalysisConfig configures candidate selection for C5.
type AnalysisConfig struct {
	FileExtensions []string `mapstructure:"file_extensions"`
	MaxFileSize    int64    `mapstructure:"max_file_size"`
	BatchSize      int      `mapstructure:"batch_size"` // worker count W
	SampleSize     int      `mapstructure:"sample_size"` // cost preview sample size k
	RequestTimeout int      `mapstructure:"request_timeout_seconds"`
	Reanalyze      bool     `mapstructure:"reanalyze"`
}

// ProviderSettings configures one concrete LLM provider's model and pricing.
type ProviderSettings struct {
	Model           string  `mapstructure:"model"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	InputRatePer1k  float64 `mapstructure:"input_rate_per_1k"`
	OutputRatePer1k float64 `mapstructure:"output_rate_per_1k"`
}

// LLMConfig configures the provider registry used by C4/C5.
type LLMConfig struct {
	DefaultProvider string                      `mapstructure:"default_provider"`
	Providers       map[string]ProviderSettings `mapstructure:"providers"`
}

// ScannerSettings configures one external scanner invoked by C6.
type ScannerSettings struct {
	Enabled         bool     `mapstructure:"enabled"`
	TimeoutSeconds  int      `mapstructure:"timeout"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
	ConfidenceLevel string   `mapstructure:"confidence_level"`
	SeverityLevel   string   `mapstructure:"severity_level"`
}

// VulnerabilityScanConfig configures C6.
type VulnerabilityScanConfig struct {
	Scanners           map[string]ScannerSettings `mapstructure:"scanners"`
	AutoInstall        bool                       `mapstructure:"auto_install"`
	MaxFindingsPerFile int                        `mapstructure:"max_findings_per_file"`
}

// PrioritySLA pairs one priority threshold with its SLA hours.
type PrioritySLA struct {
	Threshold float64 `mapstructure:"threshold"`
	SLAHours  int     `mapstructure:"sla_hours"`
}

// RiskScoringConfig configures C7. Weights must sum to 1.0 ± 1e-6.
type RiskScoringConfig struct {
	WeightVulnerability float64                `mapstructure:"weight_vulnerability"`
	WeightCategory      float64                `mapstructure:"weight_category"`
	WeightRelevance     float64                `mapstructure:"weight_relevance"`
	CategoryScores      map[string]float64     `mapstructure:"category_scores"`
	RelevanceScores     map[string]float64     `mapstructure:"relevance_scores"`
	SeverityScores      map[string]float64     `mapstructure:"severity_scores"`
	PriorityThresholds  map[string]PrioritySLA `mapstructure:"priority_thresholds"`
}

// OutputConfig configures where manifests and token analyses land.
type OutputConfig struct {
	DefaultDir            string `mapstructure:"default_dir"`
	ManifestFilename      string `mapstructure:"manifest_filename"`
	TokenAnalysisFilename string `mapstructure:"token_analysis_filename"`
}

// Default returns the built-in configuration applied before any file or
// environment override.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			FileExtensions: []string{
				".go", ".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".rb",
				".rs", ".c", ".cpp", ".cs", ".php", ".yaml", ".yml", ".json",
			},
			MaxFileSize:    1 << 20, // 1 MiB
			BatchSize:      4,
			SampleSize:     3,
			RequestTimeout: 60,
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			Providers: map[string]ProviderSettings{
				"gemini": {
					Model:           "gemini-2.0-flash",
					MaxTokens:       2000,
					Temperature:     0.1,
					InputRatePer1k:  0.000075,
					OutputRatePer1k: 0.0003,
				},
				"openai": {
					Model:           "gpt-4o-mini",
					MaxTokens:       2000,
					Temperature:     0.1,
					InputRatePer1k:  0.00015,
					OutputRatePer1k: 0.0006,
				},
			},
		},
		VulnerabilityScan: VulnerabilityScanConfig{
			Scanners: map[string]ScannerSettings{
				"semgrep": {
					Enabled:         true,
					TimeoutSeconds:  120,
					ExcludePatterns: []string{"tests/", "node_modules/", "*.min.js"},
					SeverityLevel:   "low",
				},
				"gosec": {
					Enabled:        true,
					TimeoutSeconds: 120,
					SeverityLevel:  "low",
				},
			},
			AutoInstall:        false,
			MaxFindingsPerFile: 100,
		},
		RiskScoring: RiskScoringConfig{
			WeightVulnerability: 0.4,
			WeightCategory:      0.35,
			WeightRelevance:     0.25,
			CategoryScores: map[string]float64{
				"authentication":  10,
				"data-processing": 7,
				"api":             6,
				"frontend":        3,
				"config":          4,
				"test":            1,
				"build":           1,
				"documentation":   1,
				"other":           3,
			},
			RelevanceScores: map[string]float64{
				"high":   10,
				"medium": 5,
				"low":    2,
			},
			SeverityScores: map[string]float64{
				"critical": 10,
				"high":     7,
				"medium":   4,
				"low":      1,
				"info":     0,
			},
			PriorityThresholds: map[string]PrioritySLA{
				"CRITICAL": {Threshold: 8, SLAHours: 4},
				"HIGH":     {Threshold: 6, SLAHours: 24},
				"MEDIUM":   {Threshold: 4, SLAHours: 72},
				"LOW":      {Threshold: 2, SLAHours: 168},
				"INFO":     {Threshold: 0, SLAHours: 720},
			},
		},
		Output: OutputConfig{
			DefaultDir:            "analysis-results",
			ManifestFilename:      "manifest.json",
			TokenAnalysisFilename: "manifest.tokens.json",
		},
	}
}

// Load reads configuration from path (or standard search locations when
// path is empty), applying defaults first, then file, then environment
// variable overrides — the precedence mandated by spec §6.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("source", cfg.Source)
	v.SetDefault("secondary_provider", cfg.SecondaryProvider)
	v.SetDefault("analysis", cfg.Analysis)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("vulnerability_scanning", cfg.VulnerabilityScan)
	v.SetDefault("risk_scoring", cfg.RiskScoring)
	v.SetDefault("output", cfg.Output)

	v.SetEnvPrefix("MFAUDIT")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(expandPath(path))
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".manifestaudit")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// risk_scoring may live in a separate file per spec §6.
	if rsPath := os.Getenv("MFAUDIT_RISK_SCORING_FILE"); rsPath != "" {
		if err := loadRiskScoringFile(expandPath(rsPath), &cfg.RiskScoring); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadRiskScoringFile(path string, out *RiskScoringConfig) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read risk scoring file %s: %w", path, err)
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("unmarshal risk scoring file %s: %w", path, err)
	}
	return nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env", ".env.example"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

// applyEnvOverrides layers environment variables over the loaded config.
// Per spec §6: env > config file for the source token and the
// secondary-provider credential profile name. LLM API keys have no config
// field; they are read from the environment only.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("SOURCE_ACCESS_TOKEN"); token != "" {
		cfg.Source.Token = token
	}
	if profile := os.Getenv("SECONDARY_PROVIDER_CREDENTIAL_PROFILE"); profile != "" {
		cfg.SecondaryProvider.CredentialProfile = profile
	}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
