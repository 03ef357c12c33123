package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	STT        STTConfig        `yaml:"stt"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Alert      AlertConfig      `yaml:"alert"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Relay      RelayConfig      `yaml:"relay"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AudioConfig contains microphone capture parameters
type AudioConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	Channels        int     `yaml:"channels"`
	BitDepth        int     `yaml:"bit_depth"`
	CaptureDuration float64 `yaml:"capture_duration"` // seconds
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
}

// STTConfig contains speech-to-text engine configuration.
// When ModelDir holds a whisper model the local engine is used; otherwise a
// remote transcription endpoint may be configured as a substitute.
type STTConfig struct {
	ModelDir      string `yaml:"model_dir"`
	ModelSize     string `yaml:"model_size"`
	Language      string `yaml:"language"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// ClassifierConfig contains toxicity classifier configuration
type ClassifierConfig struct {
	ModelDir  string  `yaml:"model_dir"`
	Threshold float64 `yaml:"threshold"`
}

// AlertConfig contains audit log and alert sound configuration
type AlertConfig struct {
	LogDir    string `yaml:"log_dir"`
	SoundPath string `yaml:"sound_path"`
}

// PipelineConfig contains detection loop configuration
type PipelineConfig struct {
	PollInterval float64 `yaml:"poll_interval"` // seconds
	StartEnabled bool    `yaml:"start_enabled"`
}

// RelayConfig contains the sensor relay protocol configuration.
// Port/BindAddress/VoskModelPath/ForensicDir configure the detection server;
// ServerAddress and ChunkDuration are used by the sensor client.
type RelayConfig struct {
	Port          int     `yaml:"port"`
	BindAddress   string  `yaml:"bind_address"`
	ServerAddress string  `yaml:"server_address"`
	ChunkDuration float64 `yaml:"chunk_duration"` // seconds
	VoskModelPath string  `yaml:"vosk_model_path"`
	ForensicDir   string  `yaml:"forensic_dir"`
}

// HTTPConfig contains HTTP status API configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills in defaults for optional fields so that a minimal
// config file still produces a runnable service.
func (c *Config) ApplyDefaults() {
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.BitDepth == 0 {
		c.Audio.BitDepth = 16
	}
	if c.Audio.CaptureDuration == 0 {
		c.Audio.CaptureDuration = 1.5
	}
	if c.Audio.FramesPerBuffer == 0 {
		c.Audio.FramesPerBuffer = 512
	}
	if c.STT.ModelSize == "" {
		c.STT.ModelSize = "tiny"
	}
	if c.STT.Language == "" {
		c.STT.Language = "en"
	}
	if c.Classifier.ModelDir == "" {
		c.Classifier.ModelDir = "models/minuva"
	}
	if c.Classifier.Threshold == 0 {
		c.Classifier.Threshold = 0.5
	}
	if c.Alert.LogDir == "" {
		c.Alert.LogDir = "logs"
	}
	if c.Pipeline.PollInterval == 0 {
		c.Pipeline.PollInterval = 0.75
	}
	if c.Relay.Port == 0 {
		c.Relay.Port = 50007
	}
	if c.Relay.ChunkDuration == 0 {
		c.Relay.ChunkDuration = 5.0
	}
	if c.Relay.ForensicDir == "" {
		c.Relay.ForensicDir = os.TempDir()
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.STT.Validate(); err != nil {
		return fmt.Errorf("stt config: %w", err)
	}

	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier config: %w", err)
	}

	if err := c.Alert.Validate(); err != nil {
		return fmt.Errorf("alert config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Relay.Validate(); err != nil {
		return fmt.Errorf("relay config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio capture configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for the speech models, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.CaptureDuration <= 0 {
		return fmt.Errorf("capture_duration must be positive, got %f", a.CaptureDuration)
	}

	if a.FramesPerBuffer < 64 || a.FramesPerBuffer > 8192 {
		return fmt.Errorf("frames_per_buffer must be between 64 and 8192, got %d", a.FramesPerBuffer)
	}

	return nil
}

// Validate validates STT configuration
func (s *STTConfig) Validate() error {
	switch s.ModelSize {
	case "tiny", "base", "small", "medium", "large":
	default:
		return fmt.Errorf("model_size must be one of tiny/base/small/medium/large, got %q", s.ModelSize)
	}

	if s.Endpoint != "" {
		if s.Timeout < 0 {
			return fmt.Errorf("timeout cannot be negative, got %d", s.Timeout)
		}
		if s.MaxRetries < 0 {
			return fmt.Errorf("max_retries cannot be negative, got %d", s.MaxRetries)
		}
	}

	return nil
}

// Validate validates classifier configuration
func (c *ClassifierConfig) Validate() error {
	if c.ModelDir == "" {
		return fmt.Errorf("model_dir cannot be empty")
	}

	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", c.Threshold)
	}

	return nil
}

// Validate validates alert configuration
func (a *AlertConfig) Validate() error {
	if a.LogDir == "" {
		return fmt.Errorf("log_dir cannot be empty")
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %f", p.PollInterval)
	}

	return nil
}

// Validate validates relay configuration
func (r *RelayConfig) Validate() error {
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", r.Port)
	}

	if r.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", r.ChunkDuration)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", l.Level)
	}

	switch l.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", l.Format)
	}

	return nil
}

// GetCaptureDuration returns the capture duration as a time.Duration
func (a *AudioConfig) GetCaptureDuration() time.Duration {
	return time.Duration(a.CaptureDuration * float64(time.Second))
}

// GetTimeoutDuration returns the STT request timeout as a time.Duration
func (s *STTConfig) GetTimeoutDuration() time.Duration {
	if s.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}

// GetPollInterval returns the pipeline poll interval as a time.Duration
func (p *PipelineConfig) GetPollInterval() time.Duration {
	return time.Duration(p.PollInterval * float64(time.Second))
}

// GetChunkDuration returns the relay chunk duration as a time.Duration
func (r *RelayConfig) GetChunkDuration() time.Duration {
	return time.Duration(r.ChunkDuration * float64(time.Second))
}
