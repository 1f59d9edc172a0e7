// Package config layers default values, an optional config file, WAVEMP3_*
// environment variables and command-line flags into one Config.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Encode   EncodeConfig `mapstructure:"encode"`
	Demux    DemuxConfig  `mapstructure:"demux"`
	Server   ServerConfig `mapstructure:"server"`
}

type EncodeConfig struct {
	Bitrate     int `mapstructure:"bitrate"`
	Quality     int `mapstructure:"quality"`
	ChunkFrames int `mapstructure:"chunk_frames"`
}

type DemuxConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
	TempDir     string `mapstructure:"temp_dir"`
}

type ServerConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	Workers        int    `mapstructure:"workers"`
	RequestTimeout int    `mapstructure:"request_timeout_seconds"`
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
		Encode: EncodeConfig{
			// -1 means "caller did not choose"; the converter applies the
			// 128 kbps / quality 5 defaults and enforces exclusivity.
			Bitrate:     -1,
			Quality:     -1,
			ChunkFrames: 4096,
		},
		Demux: DemuxConfig{
			FFmpegPath:  "",
			FFprobePath: "",
			TempDir:     "",
		},
		Server: ServerConfig{
			ListenAddr:     ":8080",
			Workers:        2,
			RequestTimeout: 300,
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("encode-bitrate", defaults.Encode.Bitrate, "MP3 bitrate in kbps [32,320]; -1 for the 128 default")
	fs.Int("encode-quality", defaults.Encode.Quality, "Encoder quality [0,9]; -1 for the 5 default")
	fs.Int("encode-chunk-frames", defaults.Encode.ChunkFrames, "PCM frames read per encode iteration")
	fs.String("demux-ffmpeg-path", defaults.Demux.FFmpegPath, "Path to ffmpeg (empty: resolve from PATH)")
	fs.String("demux-ffprobe-path", defaults.Demux.FFprobePath, "Path to ffprobe (empty: resolve from PATH)")
	fs.String("demux-temp-dir", defaults.Demux.TempDir, "Directory for intermediate PCM files")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent conversions served over HTTP")
	fs.Int("server-request-timeout-seconds", defaults.Server.RequestTimeout, "Per-request conversion deadline")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("WAVEMP3")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("wavemp3")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("encode.bitrate", c.Encode.Bitrate)
	v.SetDefault("encode.quality", c.Encode.Quality)
	v.SetDefault("encode.chunk_frames", c.Encode.ChunkFrames)
	v.SetDefault("demux.ffmpeg_path", c.Demux.FFmpegPath)
	v.SetDefault("demux.ffprobe_path", c.Demux.FFprobePath)
	v.SetDefault("demux.temp_dir", c.Demux.TempDir)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.request_timeout_seconds", c.Server.RequestTimeout)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("log_level", "log-level")
	v.RegisterAlias("encode.bitrate", "encode-bitrate")
	v.RegisterAlias("encode.quality", "encode-quality")
	v.RegisterAlias("encode.chunk_frames", "encode-chunk-frames")
	v.RegisterAlias("demux.ffmpeg_path", "demux-ffmpeg-path")
	v.RegisterAlias("demux.ffprobe_path", "demux-ffprobe-path")
	v.RegisterAlias("demux.temp_dir", "demux-temp-dir")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "server-workers")
	v.RegisterAlias("server.request_timeout_seconds", "server-request-timeout-seconds")
}
