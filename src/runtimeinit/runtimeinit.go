package runtimeinit

import (
	"fmt"

	"screen-select/src/clipboard"
	"screen-select/src/config"
	"screen-select/src/display"
	"screen-select/src/logutil"

	"github.com/kataras/golog"
)

type Options struct {
	LoadOptions config.LoadOptions
	// SetupLogging replaces the default logutil.Setup call.
	SetupLogging func(cfg *config.Config)
	// NeedClipboard makes a clipboard init failure fatal even when COPY_TO_CLIPBOARD is off.
	NeedClipboard bool
}

// Bootstrap loads configuration, configures logging, switches the process to per-monitor DPI
// awareness and initializes the clipboard when exports will use it.
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg)
	} else {
		logutil.Setup(cfg.EnableFileLogging, cfg.LogLevel, cfg.LogDir)
	}
	if cfg.EnvPath != "" {
		golog.Infof("Loaded configuration from %s", cfg.EnvPath)
	}

	display.EnableDPIAwareness()

	if cfg.CopyToClipboard || opts.NeedClipboard {
		if err := clipboard.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}

	return cfg, nil
}
