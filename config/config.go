// Service configuration.
//
// Configuration is a single YAML document. It is validated against an
// embedded JSON schema before unmarshaling, so structural mistakes
// (unknown keys, wrong types) surface as one schema error instead of
// silently producing a half-filled config. Every key is optional;
// defaults are applied after validation.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/santhosh-tekuri/jsonschema"
)

//go:embed schema.json
var schemaString string

//go:embed example.yaml
var exampleString string

var schema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	err := compiler.AddResource("config.json", strings.NewReader(schemaString))
	if err != nil {
		panic(fmt.Errorf("config: error adding schema: %v", err))
	}

	schema, err = compiler.Compile("config.json")
	if err != nil {
		panic(fmt.Errorf("config: error compiling schema: %v", err))
	}
}

// Keytool configures the external tool invocations.
type Keytool struct {
	Path         string `json:"path"`
	ToolTimeout  string `json:"tool_timeout"`
	ValidityDays int    `json:"validity_days"`
	KeySize      int    `json:"key_size"`
	KeyAlgorithm string `json:"key_algorithm"`
}

// Timeout parses the tool timeout. The schema guarantees the syntax.
func (k Keytool) Timeout() time.Duration {
	d, err := time.ParseDuration(k.ToolTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// Defaults are the documented insecure default credentials.
type Defaults struct {
	Alias    string `json:"alias"`
	Password string `json:"password"`
}

// Config is the root service configuration.
type Config struct {
	Listen           string   `json:"listen"`
	GeneratedDir     string   `json:"generated_dir"`
	SupersededDir    string   `json:"superseded_dir"`
	LogFile          string   `json:"log_file"`
	LogLevel         string   `json:"log_level"`
	PersistArtifacts *bool    `json:"persist_artifacts"`
	Keytool          Keytool  `json:"keytool"`
	Defaults         Defaults `json:"defaults"`
}

// Persist resolves the persist_artifacts profile, defaulting to true.
func (c Config) Persist() bool {
	if c.PersistArtifacts == nil {
		return true
	}
	return *c.PersistArtifacts
}

func (c *Config) applyDefaults() {
	if len(c.Listen) == 0 {
		c.Listen = ":8080"
	}
	if len(c.GeneratedDir) == 0 {
		c.GeneratedDir = "generated"
	}
	if len(c.SupersededDir) == 0 {
		c.SupersededDir = "generated_old"
	}
	if len(c.LogLevel) == 0 {
		c.LogLevel = "info"
	}
	if len(c.Keytool.Path) == 0 {
		c.Keytool.Path = "keytool"
	}
	if len(c.Keytool.ToolTimeout) == 0 {
		c.Keytool.ToolTimeout = "60s"
	}
	if c.Keytool.ValidityDays == 0 {
		c.Keytool.ValidityDays = 36500
	}
	if c.Keytool.KeySize == 0 {
		c.Keytool.KeySize = 2048
	}
	if len(c.Keytool.KeyAlgorithm) == 0 {
		c.Keytool.KeyAlgorithm = "RSA"
	}
	if len(c.Defaults.Alias) == 0 {
		c.Defaults.Alias = "key0"
	}
	if len(c.Defaults.Password) == 0 {
		c.Defaults.Password = "1234567890"
	}
}

// Parse reads, validates and unmarshals a configuration document.
func Parse(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: error reading config: %v", err)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg, nil
	}

	js, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("config: not valid yaml: %v", err)
	}

	if err = schema.Validate(bytes.NewReader(js)); err != nil {
		return nil, fmt.Errorf("config: does not conform to schema: %v", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: can't unmarshal: %v", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Load parses the config file at path. A missing file yields the
// built-in defaults; every other error is fatal.
func Load(path string) (*Config, error) {
	fi, err := os.Open(path)
	if os.IsNotExist(err) {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: can't open '%s': %v", path, err)
	}
	defer fi.Close()

	return Parse(fi)
}

// Example returns a commented example configuration.
func Example() string {
	return exampleString
}
