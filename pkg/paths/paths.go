// Package paths resolves per-user directories for rowforge data,
// configuration, and caches, honoring XDG overrides.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir returns the config directory for rowforge.
// Order: XDG_CONFIG_HOME/rowforge, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rowforge")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Rowforge")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "rowforge")
}

// DataDir returns the data directory for rowforge. The sqlite job
// store lives here by default.
// Order: XDG_DATA_HOME/rowforge, platform-specific fallback.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "rowforge")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Rowforge")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "rowforge")
}

// CacheDir returns the cache directory for rowforge.
// Order: XDG_CACHE_HOME/rowforge, platform-specific fallback.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "rowforge")
	}
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			return filepath.Join(localAppData, "Rowforge", "Cache")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "rowforge")
}
