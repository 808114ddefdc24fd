package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const (
	EnvFileEnvVar         = "SCREEN_SELECT_ENV"
	DefaultHotkey         = "Ctrl+Alt+S"
	DefaultLogLevel       = "info"
	DefaultExportDeadline = 10
	appDirName            = "screen-select"
)

type LoadOptions struct {
	OutputDirOverride  string
	FocalScaleOverride float32
	HotkeyOverride     string
}

type Config struct {
	OutputDir         string
	Hotkey            string
	EnableFileLogging bool
	LogLevel          string
	LogDir            string
	// FocalScale forces the focal scale factor when positive; 0 means detect from the pointer.
	FocalScale        float32
	CopyToClipboard   bool
	ExportDeadlineSec int
	EnvPath           string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, SCREEN_SELECT_ENV as a path to a config file
	// Variables already set in the environment win over the file.
	envPath := resolveEnvPath()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	exportDeadline := DefaultExportDeadline
	if v := os.Getenv("EXPORT_DEADLINE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			exportDeadline = n
		}
	}

	cfg := &Config{
		OutputDir:         resolveOutputDir(opts),
		Hotkey:            getEnvWithDefault("HOTKEY", DefaultHotkey),
		EnableFileLogging: parseBool(os.Getenv("ENABLE_FILE_LOGGING"), false),
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", DefaultLogLevel)),
		LogDir:            getEnvWithDefault("LOG_DIR", filepath.Join(xdg.StateHome, appDirName)),
		FocalScale:        resolveFocalScale(opts),
		CopyToClipboard:   parseBool(os.Getenv("COPY_TO_CLIPBOARD"), false),
		ExportDeadlineSec: exportDeadline,
		EnvPath:           envPath,
	}
	if hk := strings.TrimSpace(opts.HotkeyOverride); hk != "" {
		cfg.Hotkey = hk
	}

	return cfg, nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

// resolveOutputDir picks the export directory: override, then OUTPUT_DIR, then the user's
// pictures directory, then the working directory.
func resolveOutputDir(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.OutputDirOverride); override != "" {
		return override
	}
	if dir := strings.TrimSpace(os.Getenv("OUTPUT_DIR")); dir != "" {
		return dir
	}
	if xdg.UserDirs.Pictures != "" {
		return xdg.UserDirs.Pictures
	}
	return "."
}

func resolveFocalScale(opts LoadOptions) float32 {
	if opts.FocalScaleOverride > 0 {
		return opts.FocalScaleOverride
	}
	v := strings.TrimSpace(os.Getenv("FOCAL_SCALE"))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil || f <= 0 {
		return 0
	}
	return float32(f)
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
