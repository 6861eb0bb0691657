package lucien

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LLMConfig configures the labeling endpoint and escalation policy.
type LLMConfig struct {
	BaseURL             string   `mapstructure:"base_url" yaml:"base_url"`
	DefaultModel        string   `mapstructure:"default_model" yaml:"default_model"`
	EscalationModel     string   `mapstructure:"escalation_model" yaml:"escalation_model"`
	EscalationThreshold float64  `mapstructure:"escalation_threshold" yaml:"escalation_threshold"`
	EscalationDocTypes  []string `mapstructure:"escalation_doc_types" yaml:"escalation_doc_types"`
	MaxRetries          int      `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout             int      `mapstructure:"timeout" yaml:"timeout"` // seconds
}

// ExtractionConfig configures the extractor chain and pool.
type ExtractionConfig struct {
	SkipExtensions []string `mapstructure:"skip_extensions" yaml:"skip_extensions"`
	Methods        []string `mapstructure:"methods" yaml:"methods"` // advisory ordering
	MaxTextLength  int      `mapstructure:"max_text_length" yaml:"max_text_length"`
	UseDocling     bool     `mapstructure:"use_docling" yaml:"use_docling"`
}

// TaxonomyConfig holds the folder taxonomy and family member names.
type TaxonomyConfig struct {
	TopLevel      []string `mapstructure:"top_level" yaml:"top_level"`
	FamilyMembers []string `mapstructure:"family_members" yaml:"family_members"`
}

// NamingConfig describes canonical filenames; advisory input to the prompt.
type NamingConfig struct {
	Format     string `mapstructure:"format" yaml:"format"`
	Separator  string `mapstructure:"separator" yaml:"separator"`
	DateFormat string `mapstructure:"date_format" yaml:"date_format"`
}

// ScanConfig configures the filesystem walk.
type ScanConfig struct {
	SkipDirs       []string `mapstructure:"skip_dirs" yaml:"skip_dirs"`
	FollowSymlinks bool     `mapstructure:"follow_symlinks" yaml:"follow_symlinks"`
	HashAlgorithm  string   `mapstructure:"hash_algorithm" yaml:"hash_algorithm"`
}

// MaterializeConfig configures staging-mirror creation.
type MaterializeConfig struct {
	DefaultMode string `mapstructure:"default_mode" yaml:"default_mode"` // "copy" or "hardlink"
	ApplyTags   bool   `mapstructure:"apply_tags" yaml:"apply_tags"`
	CreateDirs  bool   `mapstructure:"create_dirs" yaml:"create_dirs"`
}

// Config is the full runtime configuration. Precedence, highest wins:
// LUCIEN_-prefixed environment variables (nested keys joined with __),
// ./lucien.yaml, the user config file, built-in defaults.
type Config struct {
	SourceRoot       string `mapstructure:"source_root" yaml:"source_root"`
	IndexDB          string `mapstructure:"index_db" yaml:"index_db"`
	ExtractedTextDir string `mapstructure:"extracted_text_dir" yaml:"extracted_text_dir"`
	StagingRoot      string `mapstructure:"staging_root" yaml:"staging_root"`

	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Extraction  ExtractionConfig  `mapstructure:"extraction" yaml:"extraction"`
	Taxonomy    TaxonomyConfig    `mapstructure:"taxonomy" yaml:"taxonomy"`
	Naming      NamingConfig      `mapstructure:"naming" yaml:"naming"`
	Scan        ScanConfig        `mapstructure:"scan" yaml:"scan"`
	Materialize MaterializeConfig `mapstructure:"materialize" yaml:"materialize"`

	DocTypes []string `mapstructure:"doc_types" yaml:"doc_types"`
	Tags     []string `mapstructure:"tags" yaml:"tags"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file,omitempty"`
}

// DefaultDocTypes is the built-in controlled vocabulary.
var DefaultDocTypes = []string{
	"identity", "legal", "contract", "deed", "will",
	"medical", "prescription", "lab_result", "insurance_eob",
	"financial", "bank_statement", "investment", "receipt",
	"tax", "w2", "1099", "1040",
	"insurance", "policy", "claim",
	"home", "mortgage", "utility", "repair",
	"vehicle", "registration", "maintenance",
	"work", "payslip", "401k", "retirement",
	"travel", "passport", "visa", "itinerary", "booking",
	"photo", "video", "media",
	"other", "uncategorized",
}

// DefaultTaxonomy is the built-in top-level folder set.
var DefaultTaxonomy = []string{
	"01 Identity & Legal",
	"02 Medical",
	"03 Financial",
	"04 Taxes",
	"05 Insurance",
	"06 Home",
	"07 Vehicles",
	"08 Work & Retirement",
	"09 Travel",
	"10 Family Photos & Media",
	"98 Uncategorized",
	"99 Needs Review",
}

// localConfigFile is the project-local config looked up in the working
// directory.
const localConfigFile = "lucien.yaml"

// UserConfigPath returns the user-global config location.
func UserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "lucien", "config.yaml"), nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "lucien")

	v.SetDefault("source_root", "")
	v.SetDefault("index_db", filepath.Join(dataDir, "index.db"))
	v.SetDefault("extracted_text_dir", filepath.Join(dataDir, "extracted_text"))
	v.SetDefault("staging_root", filepath.Join(home, "Documents", "Lucien-Staging"))

	v.SetDefault("llm.base_url", "http://localhost:1234/v1")
	v.SetDefault("llm.default_model", "qwen2.5-7b-instruct")
	v.SetDefault("llm.escalation_model", "qwen2.5-14b-instruct")
	v.SetDefault("llm.escalation_threshold", 0.7)
	v.SetDefault("llm.escalation_doc_types", []string{"taxes", "medical", "legal", "insurance"})
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.timeout", 120)

	v.SetDefault("extraction.skip_extensions",
		[]string{".jpg", ".jpeg", ".png", ".gif", ".mp4", ".mov", ".zip", ".tar", ".gz"})
	v.SetDefault("extraction.methods", []string{"docling", "pdf", "ocr", "plaintext"})
	v.SetDefault("extraction.max_text_length", 50000)
	v.SetDefault("extraction.use_docling", true)

	v.SetDefault("taxonomy.top_level", DefaultTaxonomy)
	v.SetDefault("taxonomy.family_members", []string{})

	v.SetDefault("naming.format", "YYYY-MM-DD__Domain__Issuer__Title")
	v.SetDefault("naming.separator", "__")
	v.SetDefault("naming.date_format", "2006-01-02")

	v.SetDefault("scan.skip_dirs",
		[]string{".git", ".cache", "__pycache__", "node_modules", ".DS_Store", ".Trash"})
	v.SetDefault("scan.follow_symlinks", false)
	v.SetDefault("scan.hash_algorithm", "sha256")

	v.SetDefault("materialize.default_mode", "hardlink")
	v.SetDefault("materialize.apply_tags", true)
	v.SetDefault("materialize.create_dirs", true)

	v.SetDefault("doc_types", DefaultDocTypes)
	v.SetDefault("tags", []string{
		"important", "action-required", "archived",
		"tax-deductible", "warranty", "recurring",
	})

	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_file", "")
}

// LoadConfig resolves configuration with the documented precedence. Missing
// config files are not errors; malformed ones are.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom is LoadConfig with an explicit config file. A non-empty
// path replaces the user and local file lookups and must exist; environment
// variables still take precedence over it.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LUCIEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if userPath, err := UserConfigPath(); err == nil {
			if _, err := os.Stat(userPath); err == nil {
				v.SetConfigFile(userPath)
				if err := v.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("read user config %s: %w", userPath, err)
				}
			}
		}
		if _, err := os.Stat(localConfigFile); err == nil {
			v.SetConfigFile(localConfigFile)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("read local config %s: %w", localConfigFile, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the built-in defaults without touching disk or
// environment.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(cfg)
	return cfg
}

// SaveYAML writes the config as YAML, creating parent directories.
func (c *Config) SaveYAML(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the data directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		filepath.Dir(c.IndexDB),
		c.ExtractedTextDir,
		c.StagingRoot,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
