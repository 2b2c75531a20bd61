// Package config loads and validates boardhook configuration files.
//
// A file is decoded strictly with yaml.v3 (unknown keys are errors) and then
// checked against the embedded CUE schema, which carries the field
// constraints. Defaults are filled in after validation.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/boardhook/internal/filter"
	"github.com/roach88/boardhook/internal/trello"
)

//go:embed schema.cue
var schemaSource string

// Defaults applied to fields the file leaves out.
const (
	DefaultBaseURL        = trello.DefaultBaseURL
	DefaultTrelloTimeout  = 15 * time.Second
	DefaultDiscordTimeout = 10 * time.Second
	DefaultRatePerSecond  = 2.5
	DefaultBurst          = 5
	DefaultDatabasePath   = "boardhook.db"
)

// Config is the validated configuration of one board-to-channel pairing.
//
// Config values are produced by Load or Parse and passed around by value.
// The zero Config is not loaded; EnsureLoaded reports ErrNotLoaded for it.
type Config struct {
	Trello      Trello            `yaml:"trello"`
	Discord     Discord           `yaml:"discord"`
	AliasMap    map[string]string `yaml:"aliases"`
	Persistence Persistence       `yaml:"persistence"`
	Metrics     Metrics           `yaml:"metrics"`

	loaded bool
}

// Trello holds the source settings.
type Trello struct {
	Key               string        `yaml:"key"`
	Token             string        `yaml:"token"`
	BoardID           string        `yaml:"board_id"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	Limit             int           `yaml:"limit"`
	MutedActionTypes  []string      `yaml:"muted_action_types"`
	MutedUpdateFields []string      `yaml:"muted_update_fields"`
	MutedUpdateLists  []string      `yaml:"muted_update_lists"`
}

// Discord holds the sink settings.
type Discord struct {
	WebhookURL    string        `yaml:"webhook_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

// Persistence locates the checkpoint database.
type Persistence struct {
	Path string `yaml:"path"`
}

// Metrics configures the optional Prometheus textfile.
type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data as a configuration file. source names the data in
// error messages.
func Parse(source string, data []byte) (Config, error) {
	var raw map[string]any
	if err := decodeStrict(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", source, err)
	}
	if raw == nil {
		return Config{}, &ValidationError{Source: source, Problems: []string{"file is empty"}}
	}
	if err := validate(source, raw); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := decodeStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", source, err)
	}
	cfg.applyDefaults()
	cfg.loaded = true
	return cfg, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// validate unifies the decoded document with #Config.
func validate(source string, raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def.Unify(ctx.Encode(raw))
	err := value.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	verr := &ValidationError{Source: source}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := strings.Join(e.Path(), "."); path != "" {
			msg = path + ": " + msg
		}
		verr.Problems = append(verr.Problems, msg)
	}
	if len(verr.Problems) == 0 {
		verr.Problems = []string{err.Error()}
	}
	return verr
}

func (c *Config) applyDefaults() {
	if c.Trello.BaseURL == "" {
		c.Trello.BaseURL = DefaultBaseURL
	}
	if c.Trello.Timeout == 0 {
		c.Trello.Timeout = DefaultTrelloTimeout
	}
	if c.Discord.Timeout == 0 {
		c.Discord.Timeout = DefaultDiscordTimeout
	}
	if c.Discord.RatePerSecond == 0 {
		c.Discord.RatePerSecond = DefaultRatePerSecond
	}
	if c.Discord.Burst == 0 {
		c.Discord.Burst = DefaultBurst
	}
	if c.Persistence.Path == "" {
		c.Persistence.Path = DefaultDatabasePath
	}
}

// EnsureLoaded returns ErrNotLoaded unless c came from Load or Parse.
func (c Config) EnsureLoaded() error {
	if !c.loaded {
		return ErrNotLoaded
	}
	return nil
}

// FilterConfig returns the mute settings as a filter configuration.
func (c Config) FilterConfig() filter.Config {
	return filter.NewConfig(c.Trello.MutedActionTypes, c.Trello.MutedUpdateFields, c.Trello.MutedUpdateLists)
}

// Aliases returns a copy of the username alias mapping.
func (c Config) Aliases() map[string]string {
	out := make(map[string]string, len(c.AliasMap))
	for k, v := range c.AliasMap {
		out[k] = v
	}
	return out
}
