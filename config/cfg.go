// Package config loads program configuration and builds the program logger.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/Maria-the2nd/flow-stach-sub004/convert"
	"github.com/Maria-the2nd/flow-stach-sub004/page"
	"github.com/Maria-the2nd/flow-stach-sub004/safety"
	"github.com/Maria-the2nd/flow-stach-sub004/tokens"
	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

//go:embed config.yaml
var configDefaults []byte

type (
	DetectionConfig struct {
		MarkerPrefix  string   `yaml:"marker_prefix"`
		Implicit      bool     `yaml:"implicit"`
		ImplicitNames []string `yaml:"implicit_names"`
	}

	ExtractionConfig struct {
		IncludeRoot  bool `yaml:"include_root"`
		IncludeReset bool `yaml:"include_reset"`
		IncludeBase  bool `yaml:"include_base"`
		Dedupe       bool `yaml:"dedupe"`
	}

	TokensConfig struct {
		AltRootClass  string            `yaml:"alt_root_class"`
		BaseMode      string            `yaml:"base_mode"`
		ModeSelectors map[string]string `yaml:"mode_selectors"`
	}

	BreakpointConfig struct {
		Key      string `yaml:"key"`
		MaxWidth int    `yaml:"max_width"`
	}

	VocabularyConfig struct {
		Breakpoints []BreakpointConfig `yaml:"breakpoints"`
		PseudoKeys  []string           `yaml:"pseudo_keys"`
		CombMarker  string             `yaml:"comb_marker"`
	}

	RoutingConfig struct {
		OptOutCategories []string `yaml:"opt_out_categories"`
		MaxDeclarations  int      `yaml:"max_declarations"`
	}

	SafetyConfig struct {
		ReservedPrefix    string `yaml:"reserved_prefix"`
		SoftDepth         int    `yaml:"soft_depth"`
		HardDepth         int    `yaml:"hard_depth"`
		SynthesizeMissing bool   `yaml:"synthesize_missing"`
		EmbedSoftLimit    int    `yaml:"embed_soft_limit"`
		EmbedHardLimit    int    `yaml:"embed_hard_limit"`
		Chunking          bool   `yaml:"chunking"`
	}

	ServiceConfig struct {
		URL        string       `yaml:"url"`
		APIKey     SecretString `yaml:"api_key"`
		TimeoutSec int          `yaml:"timeout_sec"`
	}

	PipelineConfig struct {
		IDPrefix    string `yaml:"id_prefix"`
		Parallelism int    `yaml:"parallelism"`
	}

	Config struct {
		Version    int              `yaml:"version"`
		Detection  DetectionConfig  `yaml:"detection"`
		Extraction ExtractionConfig `yaml:"extraction"`
		Tokens     TokensConfig     `yaml:"tokens"`
		Vocabulary VocabularyConfig `yaml:"vocabulary"`
		Routing    RoutingConfig    `yaml:"routing"`
		Safety     SafetyConfig     `yaml:"safety"`
		Service    ServiceConfig    `yaml:"service"`
		Pipeline   PipelineConfig   `yaml:"pipeline"`
		Logging    LoggingConfig    `yaml:"logging"`
	}
)

func unmarshalConfig(data []byte, cfg *Config) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposing its values on top of built-in defaults. An empty path yields
// the defaults alone.
func LoadConfiguration(path string) (*Config, error) {
	cfg, err := unmarshalConfig(configDefaults, &Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to process default configuration: %w", err)
	}
	if len(path) == 0 {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported configuration version %d", cfg.Version)
	}
	return cfg, nil
}

// Prepare returns the built-in default configuration as a byte slice,
// suitable for writing out as a starting point.
func Prepare() ([]byte, error) {
	return configDefaults, nil
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

// Vocab materializes the configured variant vocabulary, falling back to the
// stock one when the section is left empty.
func (cfg *Config) Vocab() webflow.Vocabulary {
	if len(cfg.Vocabulary.Breakpoints) == 0 && len(cfg.Vocabulary.PseudoKeys) == 0 {
		return webflow.DefaultVocabulary()
	}
	v := webflow.Vocabulary{
		PseudoKeys: append([]string(nil), cfg.Vocabulary.PseudoKeys...),
		CombMarker: cfg.Vocabulary.CombMarker,
	}
	if v.CombMarker == "" {
		v.CombMarker = webflow.DefaultVocabulary().CombMarker
	}
	for _, b := range cfg.Vocabulary.Breakpoints {
		v.Breakpoints = append(v.Breakpoints, webflow.Breakpoint{Key: b.Key, Width: b.MaxWidth})
	}
	return v
}

// PipelineOptions maps the configuration onto conversion pipeline options.
func (cfg *Config) PipelineOptions() convert.Options {
	opts := convert.DefaultOptions()

	if cfg.Detection.MarkerPrefix != "" {
		opts.Detect.MarkerPrefix = cfg.Detection.MarkerPrefix
	}
	opts.Detect.Implicit = cfg.Detection.Implicit
	if len(cfg.Detection.ImplicitNames) > 0 {
		opts.Detect.ImplicitNames = cfg.Detection.ImplicitNames
	}

	opts.Extract = page.ExtractOptions{
		IncludeRoot:  cfg.Extraction.IncludeRoot,
		IncludeReset: cfg.Extraction.IncludeReset,
		IncludeBase:  cfg.Extraction.IncludeBase,
		Dedupe:       cfg.Extraction.Dedupe,
	}

	opts.Tokens = tokens.DefaultOptions()
	if cfg.Tokens.AltRootClass != "" {
		opts.Tokens.AltRootClass = cfg.Tokens.AltRootClass
	}
	if cfg.Tokens.BaseMode != "" {
		opts.Tokens.BaseMode = cfg.Tokens.BaseMode
	}
	if len(cfg.Tokens.ModeSelectors) > 0 {
		opts.Tokens.ModeSelectors = cfg.Tokens.ModeSelectors
	}

	opts.Vocab = cfg.Vocab()

	opts.Tracer = convert.TracerOptions{
		OptOutCategories: cfg.Routing.OptOutCategories,
		MaxDeclarations:  cfg.Routing.MaxDeclarations,
	}
	if opts.Tracer.MaxDeclarations == 0 {
		opts.Tracer.MaxDeclarations = convert.DefaultTracerOptions().MaxDeclarations
	}

	opts.Gate = safety.Options{
		ReservedPrefix:    cfg.Safety.ReservedPrefix,
		SoftDepth:         cfg.Safety.SoftDepth,
		HardDepth:         cfg.Safety.HardDepth,
		SynthesizeMissing: cfg.Safety.SynthesizeMissing,
		SoftLimit:         cfg.Safety.EmbedSoftLimit,
		HardLimit:         cfg.Safety.EmbedHardLimit,
		Chunking:          cfg.Safety.Chunking,
	}

	if cfg.Pipeline.IDPrefix != "" {
		opts.IDPrefix = cfg.Pipeline.IDPrefix
	}
	if cfg.Pipeline.Parallelism > 0 {
		opts.Parallelism = cfg.Pipeline.Parallelism
	}
	opts.ServiceURL = cfg.Service.URL
	opts.ServiceToken = string(cfg.Service.APIKey)
	if cfg.Service.TimeoutSec > 0 {
		opts.ServiceTimeout = time.Duration(cfg.Service.TimeoutSec) * time.Second
	}

	return opts
}
