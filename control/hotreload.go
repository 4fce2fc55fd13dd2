// control/hotreload.go
// Reload hooks fired when the configuration file changes on disk.
// Endpoints read transport settings once, so only per-process settings such as
// the log level take effect; new connections pick up the rest.

package control

import (
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	hooksMu     sync.Mutex
	reloadHooks []func(*Config)
)

// RegisterReloadHook adds a listener for reloaded configurations.
func RegisterReloadHook(fn func(*Config)) {
	hooksMu.Lock()
	reloadHooks = append(reloadHooks, fn)
	hooksMu.Unlock()
}

// TriggerHotReloadSync invokes all reload hooks with cfg.
func TriggerHotReloadSync(cfg *Config) {
	hooksMu.Lock()
	hooks := slices.Clone(reloadHooks)
	hooksMu.Unlock()
	for _, fn := range hooks {
		fn(cfg)
	}
}

// Watch reloads the file at path on every change and passes the result to
// the reload hooks. Invalid revisions are logged and skipped.
func Watch(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Load(path)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("config reload rejected")
			return
		}
		log.Info().Str("file", e.Name).Msg("config reloaded")
		TriggerHotReloadSync(cfg)
	})
	v.WatchConfig()
	return nil
}
