package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LogConfig struct {
	Level string `toml:"level"`
}

type ResourcesConfig struct {
	// Number of background workers running InitAsync. Zero loads everything on the caller.
	Workers int `toml:"workers"`
	// Capacity of the job queue.
	QueueSize int `toml:"queue_size"`
	// Upper bound of main-thread finalize calls per update tick. Zero means unbounded.
	MaxSyncLoadsPerTick int    `toml:"max_sync_loads_per_tick"`
	AssetDir            string `toml:"asset_dir"`
	HotReload           bool   `toml:"hot_reload"`
}

type FontsConfig struct {
	BundledFallbackDir string  `toml:"bundled_fallback_dir"`
	SystemFallbacks    bool    `toml:"system_fallbacks"`
	DynamicSlotSize    int     `toml:"dynamic_slot_size"`
	MinAtlasSize       int     `toml:"min_atlas_size"`
	MaxAtlasSize       int     `toml:"max_atlas_size"`
	AtlasOccupancy     float64 `toml:"atlas_occupancy"`
	AtlasExpansion     int     `toml:"atlas_expansion"`
	MaxDynamicSlots    int     `toml:"max_dynamic_slots"`
}

type CacheConfig struct {
	AvatarDir           string `toml:"avatar_dir"`
	AvatarCapacity      int    `toml:"avatar_capacity"`
	ThumbnailCapacity   int    `toml:"thumbnail_capacity"`
	PrefetchConcurrency int    `toml:"prefetch_concurrency"`
}

// Config is the engine configuration, usually read from a TOML file.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Resources ResourcesConfig `toml:"resources"`
	Fonts     FontsConfig     `toml:"fonts"`
	Cache     CacheConfig     `toml:"cache"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Resources: ResourcesConfig{
			Workers:             2,
			QueueSize:           64,
			MaxSyncLoadsPerTick: 8,
			AssetDir:            "assets",
		},
		Fonts: FontsConfig{
			BundledFallbackDir: "assets/fonts/fallback",
			SystemFallbacks:    true,
			DynamicSlotSize:    64,
			MinAtlasSize:       256,
			MaxAtlasSize:       4096,
			AtlasOccupancy:     0.75,
			AtlasExpansion:     4,
		},
		Cache: CacheConfig{
			AvatarDir:           "assets/avatars",
			AvatarCapacity:      128,
			ThumbnailCapacity:   256,
			PrefetchConcurrency: 4,
		},
	}
}

// LoadConfig reads the TOML file at path on top of DefaultConfig. Keys missing
// from the file keep their default value.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Resources.Workers < 0:
		return fmt.Errorf("%w: resources.workers must be >= 0", ErrInvalidConfig)
	case c.Resources.QueueSize < 0:
		return fmt.Errorf("%w: resources.queue_size must be >= 0", ErrInvalidConfig)
	case c.Resources.MaxSyncLoadsPerTick < 0:
		return fmt.Errorf("%w: resources.max_sync_loads_per_tick must be >= 0", ErrInvalidConfig)
	case c.Fonts.DynamicSlotSize <= 0:
		return fmt.Errorf("%w: fonts.dynamic_slot_size must be > 0", ErrInvalidConfig)
	case c.Fonts.MinAtlasSize <= 0 || c.Fonts.MaxAtlasSize < c.Fonts.MinAtlasSize:
		return fmt.Errorf("%w: fonts atlas size range [%d, %d]", ErrInvalidConfig, c.Fonts.MinAtlasSize, c.Fonts.MaxAtlasSize)
	case c.Fonts.AtlasOccupancy <= 0 || c.Fonts.AtlasOccupancy > 1:
		return fmt.Errorf("%w: fonts.atlas_occupancy must be in (0, 1]", ErrInvalidConfig)
	case c.Fonts.AtlasExpansion < 1:
		return fmt.Errorf("%w: fonts.atlas_expansion must be >= 1", ErrInvalidConfig)
	case c.Cache.AvatarCapacity <= 0 || c.Cache.ThumbnailCapacity <= 0:
		return fmt.Errorf("%w: cache capacities must be > 0", ErrInvalidConfig)
	}
	return nil
}
