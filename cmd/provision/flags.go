package main

import (
	"fmt"
	"os"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/fsutil"
)

// loadConfig reads the run document named by -c, or the embedded profile.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	if flags.configPath != "" {
		info, err := os.Stat(flags.configPath)
		if err == nil && info.IsDir() {
			return nil, fmt.Errorf("config path %s is a directory", flags.configPath)
		}
	}
	return config.Load(flags.configPath)
}

// logFilePath resolves the audit log location: the flag wins over the
// document's settings. An empty result disables the file sink.
func logFilePath(flags *rootFlags, cfg *config.Config) (string, error) {
	path := flags.logFile
	if path == "" {
		path = cfg.Settings.LogFile
	}
	if path == "" {
		return "", nil
	}
	return fsutil.Expand(path)
}
