package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	Paths    PathsConfig   `mapstructure:"paths"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Vocoder  VocoderConfig `mapstructure:"vocoder"`
	Server   ServerConfig  `mapstructure:"server"`
	TTS      TTSConfig     `mapstructure:"tts"`
}

type PathsConfig struct {
	BundleDir  string `mapstructure:"bundle_dir"`
	OutputsDir string `mapstructure:"outputs_dir"`
	DBPath     string `mapstructure:"db_path"`
}

type RuntimeConfig struct {
	Threads        int    `mapstructure:"threads"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
}

type VocoderConfig struct {
	Backend   string `mapstructure:"backend"`
	ONNXPath  string `mapstructure:"onnx_path"`
	HopLength int    `mapstructure:"hop_length"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	GRPCAddr        string `mapstructure:"grpc_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type TTSConfig struct {
	Language  string `mapstructure:"language"`
	Accent    int    `mapstructure:"accent"`
	Style     int    `mapstructure:"style"`
	MaxTokens int    `mapstructure:"max_tokens"`
	MaxSteps  int    `mapstructure:"max_steps"`
	Workers   int    `mapstructure:"workers"`
	Chunk     bool   `mapstructure:"chunk"`
	Seed      uint64 `mapstructure:"seed"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Paths: PathsConfig{
			BundleDir:  "models/voicetech",
			OutputsDir: "outputs",
			DBPath:     "outputs/artifacts.db",
		},
		Runtime: RuntimeConfig{
			Threads:        4,
			ORTLibraryPath: "",
			ORTVersion:     "",
		},
		Vocoder: VocoderConfig{
			Backend:   VocoderSine,
			ONNXPath:  "",
			HopLength: 256,
		},
		Server: ServerConfig{
			ListenAddr:      ":8000",
			GRPCAddr:        "",
			Workers:         2,
			MaxTextBytes:    4096,
			RequestTimeout:  60,
			ShutdownTimeout: 30,
		},
		TTS: TTSConfig{
			Language:  "hi",
			Accent:    0,
			Style:     0,
			MaxTokens: 150,
			MaxSteps:  0,
			Workers:   4,
			Chunk:     false,
			Seed:      42,
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-bundle-dir", defaults.Paths.BundleDir, "Model bundle directory (manifest.yaml, weights, vocabulary)")
	fs.String("paths-outputs-dir", defaults.Paths.OutputsDir, "Directory for synthesized audio files")
	fs.String("paths-db-path", defaults.Paths.DBPath, "SQLite artifact index path")
	fs.Int("runtime-threads", defaults.Runtime.Threads, "Tensor kernel worker count")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.String("vocoder-backend", defaults.Vocoder.Backend, "Vocoder backend (sine|onnx)")
	fs.String("vocoder-onnx-path", defaults.Vocoder.ONNXPath, "Path to the vocoder graph manifest (manifest.yaml listing a \"vocoder\" graph)")
	fs.Int("vocoder-hop-length", defaults.Vocoder.HopLength, "Samples per mel frame")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.String("server-grpc-addr", defaults.Server.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent synthesis requests")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis timeout in seconds")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("tts-language", defaults.TTS.Language, "Default language code")
	fs.Int("tts-accent", defaults.TTS.Accent, "Default accent id")
	fs.Int("tts-style", defaults.TTS.Style, "Default speaking style id")
	fs.Int("tts-max-tokens", defaults.TTS.MaxTokens, "Maximum tokens per utterance")
	fs.Int("tts-max-steps", defaults.TTS.MaxSteps, "Decoder step cap override (0 keeps the model's value)")
	fs.Int("tts-workers", defaults.TTS.Workers, "Parallel synthesis workers")
	fs.Bool("tts-chunk", defaults.TTS.Chunk, "Split long text into sentence chunks")
	fs.Uint64("tts-seed", defaults.TTS.Seed, "Seed for random model initialization")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("VOICETECH")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)

	if err := v.BindEnv("runtime.ort_library_path", "VOICETECH_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}

	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("voicetech")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	backend, err := NormalizeVocoder(cfg.Vocoder.Backend)
	if err != nil {
		return Config{}, err
	}

	cfg.Vocoder.Backend = backend

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("paths.bundle_dir", c.Paths.BundleDir)
	v.SetDefault("paths.outputs_dir", c.Paths.OutputsDir)
	v.SetDefault("paths.db_path", c.Paths.DBPath)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("vocoder.backend", c.Vocoder.Backend)
	v.SetDefault("vocoder.onnx_path", c.Vocoder.ONNXPath)
	v.SetDefault("vocoder.hop_length", c.Vocoder.HopLength)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.grpc_addr", c.Server.GRPCAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("tts.language", c.TTS.Language)
	v.SetDefault("tts.accent", c.TTS.Accent)
	v.SetDefault("tts.style", c.TTS.Style)
	v.SetDefault("tts.max_tokens", c.TTS.MaxTokens)
	v.SetDefault("tts.max_steps", c.TTS.MaxSteps)
	v.SetDefault("tts.workers", c.TTS.Workers)
	v.SetDefault("tts.chunk", c.TTS.Chunk)
	v.SetDefault("tts.seed", c.TTS.Seed)
}

// flagKeys maps each config key to the flags that set it. When several
// flags name one key, the first one given on the command line wins.
var flagKeys = []struct {
	key   string
	flags []string
}{
	{"log_level", []string{"log-level"}},
	{"paths.bundle_dir", []string{"paths-bundle-dir"}},
	{"paths.outputs_dir", []string{"paths-outputs-dir"}},
	{"paths.db_path", []string{"paths-db-path"}},
	{"runtime.threads", []string{"runtime-threads"}},
	{"runtime.ort_library_path", []string{"ort-lib", "runtime-ort-library-path"}},
	{"runtime.ort_version", []string{"runtime-ort-version"}},
	{"vocoder.backend", []string{"vocoder-backend"}},
	{"vocoder.onnx_path", []string{"vocoder-onnx-path"}},
	{"vocoder.hop_length", []string{"vocoder-hop-length"}},
	{"server.listen_addr", []string{"server-listen-addr"}},
	{"server.grpc_addr", []string{"server-grpc-addr"}},
	{"server.workers", []string{"workers"}},
	{"server.max_text_bytes", []string{"max-text-bytes"}},
	{"server.request_timeout", []string{"request-timeout"}},
	{"server.shutdown_timeout", []string{"shutdown-timeout"}},
	{"tts.language", []string{"tts-language"}},
	{"tts.accent", []string{"tts-accent"}},
	{"tts.style", []string{"tts-style"}},
	{"tts.max_tokens", []string{"tts-max-tokens"}},
	{"tts.max_steps", []string{"tts-max-steps"}},
	{"tts.workers", []string{"tts-workers"}},
	{"tts.chunk", []string{"tts-chunk"}},
	{"tts.seed", []string{"tts-seed"}},
}

// bindFlags ties each nested key to its flag, so flags, env, the config file
// and defaults all resolve under one key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		var bound *pflag.Flag

		for _, name := range fk.flags {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}

			if bound == nil || (f.Changed && !bound.Changed) {
				bound = f
			}
		}

		if bound == nil {
			continue
		}

		if err := v.BindPFlag(fk.key, bound); err != nil {
			return fmt.Errorf("bind flag --%s: %w", bound.Name, err)
		}
	}

	return nil
}
