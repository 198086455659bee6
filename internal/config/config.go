// Package config loads the worker configuration once at startup.
// The resulting Config value is passed explicitly into every component
// constructor; nothing in the core reads the environment at runtime.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	QueueName   string `mapstructure:"QUEUE_NAME"`

	ScratchDir string `mapstructure:"SCRATCH_DIR"`
	FFmpegBin  string `mapstructure:"FFMPEG_BIN"`
	FFprobeBin string `mapstructure:"FFPROBE_BIN"`
	PresetName string `mapstructure:"PRESET_NAME"`

	DownloadTimeout  time.Duration `mapstructure:"DOWNLOAD_TIMEOUT"`
	DownloadRetries  int           `mapstructure:"DOWNLOAD_RETRIES"`
	MaxDownloadBytes int64         `mapstructure:"MAX_DOWNLOAD_BYTES"`
	MinVideoBytes    int64         `mapstructure:"MIN_VIDEO_BYTES"`
	MinAudioBytes    int64         `mapstructure:"MIN_AUDIO_BYTES"`
	MinFreeDiskBytes int64         `mapstructure:"MIN_FREE_DISK_BYTES"`

	StorageProvider    string `mapstructure:"STORAGE_PROVIDER"`
	StorageLocalRoot   string `mapstructure:"STORAGE_LOCAL_ROOT"`
	GDriveClientID     string `mapstructure:"GDRIVE_CLIENT_ID"`
	GDriveClientSecret string `mapstructure:"GDRIVE_CLIENT_SECRET"`
	GDriveRefreshToken string `mapstructure:"GDRIVE_REFRESH_TOKEN"`
	GDriveFolderID     string `mapstructure:"GDRIVE_FOLDER_ID"`

	HealthAddr string `mapstructure:"HEALTH_ADDR"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// stringToDurationHookFunc parses Go duration strings from env/file values.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	vp.SetDefault("DATABASE_URL", "")
	vp.SetDefault("REDIS_ADDR", "localhost:6379")
	vp.SetDefault("QUEUE_NAME", "loopmix:jobs")
	vp.SetDefault("SCRATCH_DIR", "/tmp/loopmix")
	vp.SetDefault("FFMPEG_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("PRESET_NAME", "balanced-720")
	vp.SetDefault("DOWNLOAD_TIMEOUT", "2m")
	vp.SetDefault("DOWNLOAD_RETRIES", 3)
	vp.SetDefault("MAX_DOWNLOAD_BYTES", int64(2<<30))
	vp.SetDefault("MIN_VIDEO_BYTES", int64(10*1024))
	vp.SetDefault("MIN_AUDIO_BYTES", int64(4*1024))
	vp.SetDefault("MIN_FREE_DISK_BYTES", int64(1<<30))
	vp.SetDefault("STORAGE_PROVIDER", "localfs")
	vp.SetDefault("STORAGE_LOCAL_ROOT", "/data")
	vp.SetDefault("GDRIVE_CLIENT_ID", "")
	vp.SetDefault("GDRIVE_CLIENT_SECRET", "")
	vp.SetDefault("GDRIVE_REFRESH_TOKEN", "")
	vp.SetDefault("GDRIVE_FOLDER_ID", "")
	vp.SetDefault("HEALTH_ADDR", "")
	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("LOG_FORMAT", "json")

	// Optional config file
	vp.SetConfigName("loopmix_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/loopmix/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("LOOPMIX")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "LOOPMIX_DATABASE_URL")
	}
	if c.RedisAddr == "" {
		missing = append(missing, "LOOPMIX_REDIS_ADDR")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.DownloadRetries < 0 {
		return fmt.Errorf("LOOPMIX_DOWNLOAD_RETRIES must be >= 0, got %d", c.DownloadRetries)
	}
	if c.StorageProvider != "localfs" && c.StorageProvider != "gdrive" {
		return fmt.Errorf("unknown storage provider: %s", c.StorageProvider)
	}
	return nil
}
