package config

import (
	"fmt"
	"os"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"

	"github.com/openmeet/sfu/internal/engine"
)

type CodecConfig struct {
	MimeType  string `mapstructure:"mime_type"`
	ClockRate uint32 `mapstructure:"clock_rate"`
	Channels  uint16 `mapstructure:"channels"`
}

type TransportConfig struct {
	ListenIP    string `mapstructure:"listen_ip"`
	AnnouncedIP string `mapstructure:"announced_ip"`
}

type Config struct {
	Mode        string          `mapstructure:"mode"`
	Port        int             `mapstructure:"port"`
	Secret      string          `mapstructure:"secret"`
	Workers     int             `mapstructure:"workers"`
	MediaCodecs []CodecConfig   `mapstructure:"media_codecs"`
	Transport   TransportConfig `mapstructure:"transport"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	// 0 means one worker per CPU.
	v.SetDefault("workers", 0)
	v.SetDefault("transport.listen_ip", "0.0.0.0")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// RouterOptions converts the configured codec list into engine options. An
// empty list lets the engine pick its defaults.
func (c *Config) RouterOptions() engine.RouterOptions {
	codecs := make([]webrtc.RTPCodecCapability, 0, len(c.MediaCodecs))
	for _, codec := range c.MediaCodecs {
		codecs = append(codecs, webrtc.RTPCodecCapability{
			MimeType:  codec.MimeType,
			ClockRate: codec.ClockRate,
			Channels:  codec.Channels,
		})
	}
	return engine.RouterOptions{MediaCodecs: codecs}
}

func (c *Config) TransportOptions() engine.TransportOptions {
	return engine.TransportOptions{
		ListenIP:    c.Transport.ListenIP,
		AnnouncedIP: c.Transport.AnnouncedIP,
	}
}
