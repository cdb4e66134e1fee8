package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/medshadow/pkg/audio"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "deepgram"},
	"tts": {"coqui", "elevenlabs"},
}

// LookupFunc reads an environment variable. [os.LookupEnv] satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and returns a validated [Config]. An empty path
// builds the configuration from the environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		cfg, err = decode(f)
		if err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	ApplyEnv(cfg, os.LookupEnv)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. The environment is not consulted.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the deployment environment variables
// DATABASE_URL, JWT_SECRET, PORT, ALLOWED_ORIGINS (comma separated) and
// MEDSHADOW_ENV, falling back to NODE_ENV for the environment name.
// Unset or empty variables leave cfg untouched.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("DATABASE_URL"); ok {
		cfg.Database.PostgresDSN = v
	}
	if v, ok := get("JWT_SECRET"); ok {
		cfg.Auth.JWTSecret = v
	}
	if v, ok := get("PORT"); ok {
		cfg.Server.ListenAddr = ":" + strings.TrimPrefix(v, ":")
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		var origins []string
		for o := range strings.SplitSeq(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v, ok := get("MEDSHADOW_ENV"); ok {
		cfg.Server.Environment = Environment(v)
	} else if v, ok := get("NODE_ENV"); ok {
		cfg.Server.Environment = Environment(v)
	}
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = ":3000"
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.Environment == "" {
		s.Environment = EnvDevelopment
	}
	if len(s.AllowedOrigins) == 0 && s.Environment != EnvProduction {
		s.AllowedOrigins = slices.Clone(DevAllowedOrigins)
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	}

	rl := &cfg.RateLimit
	if rl.Window == 0 {
		rl.Window = 15 * time.Minute
	}
	if rl.MaxRequests == 0 {
		rl.MaxRequests = 100
	}
	if rl.AuthMaxRequests == 0 {
		rl.AuthMaxRequests = 10
	}

	sp := &cfg.Speech
	if sp.Language == "" {
		sp.Language = "en-US"
	}
	if sp.SampleRate == 0 {
		sp.SampleRate = 16000
	}
	if sp.MaxUploadBytes == 0 {
		sp.MaxUploadBytes = 10 << 20
	}

	if cfg.Scoring.PhoneticThreshold == 0 {
		cfg.Scoring.PhoneticThreshold = 0.70
	}
	if cfg.Scoring.FuzzyThreshold == 0 {
		cfg.Scoring.FuzzyThreshold = 0.85
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "medshadow"
	}
	if cfg.Telemetry.MetricsPath == "" {
		cfg.Telemetry.MetricsPath = "/metrics"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.Environment != "" && !cfg.Server.Environment.IsValid() {
		errs = append(errs, fmt.Errorf("server.environment %q is invalid; valid values: development, production, test", cfg.Server.Environment))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %v must not be negative", cfg.Server.ShutdownTimeout))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.Environment == EnvProduction && len(cfg.Server.AllowedOrigins) == 0 {
		slog.Warn("server.allowed_origins is empty in production; browsers will be refused by CORS")
	}

	// Database
	if cfg.Database.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("database.max_conns %d must not be negative", cfg.Database.MaxConns))
	}
	if cfg.Database.PostgresDSN == "" {
		slog.Warn("database.postgres_dsn is empty; using the in-memory store, data will not survive a restart")
	}

	// Auth
	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required (or set JWT_SECRET)"))
	} else if len(cfg.Auth.JWTSecret) < 32 {
		slog.Warn("auth.jwt_secret is shorter than 32 bytes")
	}
	if cfg.Auth.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl %v must be positive", cfg.Auth.TokenTTL))
	}

	// Rate limit
	if rl := cfg.RateLimit; rl.IsEnabled() {
		if rl.Window < 0 {
			errs = append(errs, fmt.Errorf("rate_limit.window %v must be positive", rl.Window))
		}
		if rl.MaxRequests < 0 {
			errs = append(errs, fmt.Errorf("rate_limit.max_requests %d must be positive", rl.MaxRequests))
		}
		if rl.AuthMaxRequests < 0 {
			errs = append(errs, fmt.Errorf("rate_limit.auth_max_requests %d must be positive", rl.AuthMaxRequests))
		}
	}

	// Providers
	validateProviderEntry("stt", "providers.stt", cfg.Providers.STT, &errs)
	validateProviderEntry("tts", "providers.tts", cfg.Providers.TTS, &errs)

	// Speech
	if sf := cfg.Speech.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("speech.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}
	if sr := cfg.Speech.SampleRate; sr != 0 && (sr < audio.MinSampleRate || sr > audio.MaxSampleRate) {
		errs = append(errs, fmt.Errorf("speech.sample_rate %d is out of range [%d, %d]", sr, audio.MinSampleRate, audio.MaxSampleRate))
	}
	if cfg.Speech.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("speech.max_upload_bytes %d must be positive", cfg.Speech.MaxUploadBytes))
	}

	// Scoring
	if t := cfg.Scoring.PhoneticThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("scoring.phonetic_threshold %.2f is out of range [0, 1]", t))
	}
	if t := cfg.Scoring.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("scoring.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}

	// Telemetry
	if p := cfg.Telemetry.MetricsPath; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", p))
	}

	return errors.Join(errs...)
}

func validateProviderEntry(kind, prefix string, entry ProviderEntry, errs *[]error) {
	if entry.Name == "" {
		if len(entry.Fallbacks) > 0 {
			*errs = append(*errs, fmt.Errorf("%s.fallbacks requires %s.name to be set", prefix, prefix))
		}
		return
	}
	validateProviderName(kind, entry.Name)
	for i, fb := range entry.Fallbacks {
		if fb.Name == "" {
			*errs = append(*errs, fmt.Errorf("%s.fallbacks[%d].name is required", prefix, i))
			continue
		}
		if len(fb.Fallbacks) > 0 {
			slog.Warn("nested provider fallbacks are ignored", "kind", kind, "name", fb.Name)
		}
		validateProviderName(kind, fb.Name)
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
