package purfectgfx

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Options controls engine-wide limits and rendering behavior.
type Options struct {
	// StorageLimitMB is the storage budget for decoded frame data, in
	// megabytes. Images are evicted least-recently-used when the billed
	// total would exceed it.
	StorageLimitMB int `koanf:"storage_limit_mb"`

	// CacheDir overrides the directory used for the on-disk frame cache.
	// Empty means the user cache directory (XDG_CACHE_HOME).
	CacheDir string `koanf:"cache_dir"`

	// EdgePolicy selects texture sampling past image edges:
	// "repeat", "mirror", or "clamp" (clamp to a transparent border).
	EdgePolicy string `koanf:"edge_policy"`

	// DisableAnimation freezes animated images on their current frame.
	DisableAnimation bool `koanf:"disable_animation"`

	// MaxTextureSize caps the texture dimension reported by the backend.
	// 0 means use the backend's own limit. Images larger than the cap are
	// downscaled before upload.
	MaxTextureSize int `koanf:"max_texture_size"`
}

// DefaultOptions returns the options used when no config file is present.
func DefaultOptions() Options {
	return Options{
		StorageLimitMB: 320,
		EdgePolicy:     "clamp",
	}
}

// StorageLimitBytes returns the storage budget in bytes.
func (o Options) StorageLimitBytes() int64 {
	return int64(o.StorageLimitMB) * 1024 * 1024
}

// ResolveEdgePolicy maps the configured edge policy string to an
// EdgePolicy, defaulting to clamp for unknown values.
func (o Options) ResolveEdgePolicy() EdgePolicy {
	switch o.EdgePolicy {
	case "repeat":
		return EdgeRepeat
	case "mirror":
		return EdgeMirror
	default:
		return EdgeClamp
	}
}

// LoadOptions reads options from the first config file found, applied on
// top of DefaultOptions. Later paths win over earlier ones.
func LoadOptions() (Options, error) {
	k := koanf.New(".")

	for _, path := range optionsPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return DefaultOptions(), err
			}
		}
	}

	opts := DefaultOptions()
	if err := k.Unmarshal("", &opts); err != nil {
		return DefaultOptions(), err
	}
	if opts.StorageLimitMB <= 0 {
		opts.StorageLimitMB = DefaultOptions().StorageLimitMB
	}
	return opts, nil
}

func optionsPaths() []string {
	paths := []string{}

	// 1. ~/.config/purfectgfx/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "purfectgfx", "config.toml"))
	}

	// 2. ./purfectgfx.toml (pwd, highest priority)
	paths = append(paths, "purfectgfx.toml")

	return paths
}

// defaultCacheDir returns the directory used for the frame cache when no
// override is configured.
func defaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "purfectgfx")
}
