package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/mapping"
	"github.com/address-lookup/internal/parser"
)

type LocaleCfg struct {
	Name            string `yaml:"name" json:"name"`
	PostcodePattern string `yaml:"postcode_pattern" json:"postcode_pattern"`
}

type LookupCfg struct {
	DebounceMs       int       `yaml:"debounce_ms" json:"debounce_ms"`
	ConfirmAdditions bool      `yaml:"confirm_additions" json:"confirm_additions"`
	DisplayMode      string    `yaml:"display_mode" json:"display_mode"`
	Locale           LocaleCfg `yaml:"locale" json:"locale"`
}

type MappingCfg struct {
	StandardFields []string `yaml:"standard_fields" json:"standard_fields"`
	DefaultProfile string   `yaml:"default_profile" json:"default_profile"`
}

type CacheCfg struct {
	TTLHours int `yaml:"ttl_hours" json:"ttl_hours"`
	L1Size   int `yaml:"l1_size" json:"l1_size"`
}

type SessionCfg struct {
	TTLMinutes             int `yaml:"ttl_minutes" json:"ttl_minutes"`
	JanitorIntervalSeconds int `yaml:"janitor_interval_seconds" json:"janitor_interval_seconds"`
	MaxSessions            int `yaml:"max_sessions" json:"max_sessions"`
}

type APICfg struct {
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	Burst     int     `yaml:"burst" json:"burst"`
	TimeoutMs int     `yaml:"timeout_ms" json:"timeout_ms"`
}

type SearchCfg struct {
	Limit int `yaml:"limit" json:"limit"`
}

type AppCfg struct {
	Lookup  LookupCfg  `yaml:"lookup" json:"lookup"`
	Mapping MappingCfg `yaml:"mapping" json:"mapping"`
	Cache   CacheCfg   `yaml:"cache" json:"cache"`
	Session SessionCfg `yaml:"session" json:"session"`
	API     APICfg     `yaml:"api" json:"api"`
	Search  SearchCfg  `yaml:"search" json:"search"`
}

var C = Defaults()

// Defaults is the configuration used when no file is present.
func Defaults() AppCfg {
	return AppCfg{
		Lookup: LookupCfg{
			DebounceMs:  int(lookup.DefaultDebounce / time.Millisecond),
			DisplayMode: string(lookup.DisplayDefault),
			Locale:      LocaleCfg{Name: "NL", PostcodePattern: parser.DefaultPostcodePattern},
		},
		Mapping: MappingCfg{
			StandardFields: mapping.StandardFields,
			DefaultProfile: "checkout",
		},
		Cache:   CacheCfg{TTLHours: 24 * 30, L1Size: 10000},
		Session: SessionCfg{TTLMinutes: 30, JanitorIntervalSeconds: 60, MaxSessions: 100000},
		API:     APICfg{RateLimit: 20, Burst: 5, TimeoutMs: 5000},
		Search:  SearchCfg{Limit: 10},
	}
}

func Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	C = cfg
	return nil
}

// ENV overrides
func applyEnv(cfg *AppCfg) {
	if v := os.Getenv("LOOKUP_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Lookup.DebounceMs = ms
		}
	}
	switch os.Getenv("CONFIRM_ADDITIONS") {
	case "0", "false":
		cfg.Lookup.ConfirmAdditions = false
	case "1", "true":
		cfg.Lookup.ConfirmAdditions = true
	}
}

// Validate rejects settings the services cannot run with.
func (c AppCfg) Validate() error {
	if c.Lookup.DebounceMs < 0 {
		return fmt.Errorf("lookup.debounce_ms must not be negative, got %d", c.Lookup.DebounceMs)
	}
	if !lookup.DisplayMode(c.Lookup.DisplayMode).Valid() {
		return fmt.Errorf("lookup.display_mode %q is not one of default, showOnAddress, showAll", c.Lookup.DisplayMode)
	}
	if _, err := c.Locale(); err != nil {
		return err
	}
	if len(c.Mapping.StandardFields) == 0 {
		return fmt.Errorf("mapping.standard_fields must not be empty")
	}
	return nil
}

// Locale compiles the configured postcode locale.
func (c AppCfg) Locale() (parser.Locale, error) {
	if c.Lookup.Locale.PostcodePattern == "" {
		return parser.NL, nil
	}
	return parser.NewLocale(c.Lookup.Locale.Name, c.Lookup.Locale.PostcodePattern)
}

// SessionConfig is the lookup.Config every new form session starts with.
func (c AppCfg) SessionConfig() lookup.Config {
	locale, err := c.Locale()
	if err != nil {
		locale = parser.NL
	}
	return lookup.Config{
		Debounce:         time.Duration(c.Lookup.DebounceMs) * time.Millisecond,
		ConfirmAdditions: c.Lookup.ConfirmAdditions,
		DisplayMode:      lookup.DisplayMode(c.Lookup.DisplayMode),
		Locale:           locale,
	}
}

func (c AppCfg) CacheTTL() time.Duration   { return time.Duration(c.Cache.TTLHours) * time.Hour }
func (c AppCfg) SessionTTL() time.Duration { return time.Duration(c.Session.TTLMinutes) * time.Minute }
func (c AppCfg) JanitorInterval() time.Duration {
	return time.Duration(c.Session.JanitorIntervalSeconds) * time.Second
}
func (c AppCfg) APITimeout() time.Duration { return time.Duration(c.API.TimeoutMs) * time.Millisecond }
