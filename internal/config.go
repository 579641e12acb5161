package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

const appName = "takeout-organizer"

type Config struct {
	OutputDir        string   `mapstructure:"output_dir"`
	WorkDir          string   `mapstructure:"work_dir"`
	PhotoExt         []string `mapstructure:"photo_extensions"`
	VideoExt         []string `mapstructure:"video_extensions"`
	ExifExt          []string `mapstructure:"exif_extensions"`
	SidecarSuffix    string   `mapstructure:"sidecar_suffix"`
	UseExifTool      bool     `mapstructure:"use_exiftool"`
	VideoMetadata    bool     `mapstructure:"video_metadata"`
	LogLevel         string   `mapstructure:"log_level"`
	LargeFileWarning string   `mapstructure:"large_file_warning"`
	DryRun           bool     `mapstructure:"-"`

	largeFileBytes uint64
}

// LargeFileBytes is the parsed large_file_warning threshold
func (c *Config) LargeFileBytes() uint64 {
	return c.largeFileBytes
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "output")
	v.SetDefault("work_dir", os.TempDir())
	v.SetDefault("photo_extensions", []string{".jpg", ".jpeg", ".png", ".heic", ".webp", ".gif"})
	v.SetDefault("video_extensions", []string{".mp4", ".mov", ".avi", ".mkv", ".webm"})
	v.SetDefault("exif_extensions", []string{".jpg", ".jpeg", ".png", ".webp", ".heic"})
	v.SetDefault("sidecar_suffix", ".json")
	v.SetDefault("use_exiftool", false)
	v.SetDefault("video_metadata", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("large_file_warning", "5GiB")
}

// LoadConfig reads defaults, the optional TOML config file and TAKEOUT_ORGANIZER_* env vars.
// An empty path searches the user config dir; a missing file there is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TAKEOUT_ORGANIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("toml")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, appName))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes fields and parses derived values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output_dir must not be empty")
	}
	if c.SidecarSuffix == "" {
		c.SidecarSuffix = ".json"
	}
	if len(c.PhotoExt) == 0 && len(c.VideoExt) == 0 {
		return errors.New("at least one photo or video extension is required")
	}
	if c.LargeFileWarning == "" {
		c.largeFileBytes = 0
		return nil
	}
	n, err := humanize.ParseBytes(c.LargeFileWarning)
	if err != nil {
		return fmt.Errorf("invalid large_file_warning %q: %w", c.LargeFileWarning, err)
	}
	c.largeFileBytes = n
	return nil
}
