package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment variables.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "rp"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "RP"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg = expandEnvVars(cfg)

	return cfg, nil
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings.
func expandEnvVars(cfg Config) Config {
	cfg.Patcher.Endpoint = expandEnvString(cfg.Patcher.Endpoint)
	cfg.Patcher.Timeout = expandEnvString(cfg.Patcher.Timeout)
	cfg.Patcher.InitialBackoff = expandEnvString(cfg.Patcher.InitialBackoff)
	cfg.Patcher.MaxBackoff = expandEnvString(cfg.Patcher.MaxBackoff)

	cfg.Git.RepositoryDir = expandEnvString(cfg.Git.RepositoryDir)
	cfg.Git.Ref = expandEnvString(cfg.Git.Ref)

	cfg.Store.Path = expandEnvString(cfg.Store.Path)
	cfg.Output.Directory = expandEnvString(cfg.Output.Directory)

	cfg.Observability.Logging.Level = expandEnvString(cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = expandEnvString(cfg.Observability.Logging.Format)

	return cfg
}

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	re := regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	// Patcher defaults
	v.SetDefault("patcher.mode", "local")
	v.SetDefault("patcher.timeout", "60s")
	v.SetDefault("patcher.maxRetries", 3)
	v.SetDefault("patcher.initialBackoff", "1s")
	v.SetDefault("patcher.maxBackoff", "16s")
	v.SetDefault("patcher.backoffMultiplier", 2.0)
	v.SetDefault("patcher.contextLines", 3)

	// Git defaults
	v.SetDefault("git.repositoryDir", ".")

	// Store defaults
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", defaultStorePath())

	// Output defaults
	v.SetDefault("output.directory", "out")
	v.SetDefault("output.format", "both")
	v.SetDefault("output.redactSecrets", true)

	// Display defaults
	v.SetDefault("display.collapseThreshold", 5)

	// Limits defaults
	v.SetDefault("limits.maxFileBytes", 200*1024)
	v.SetDefault("limits.maxSuggestionsPerFile", 50)

	// Observability defaults
	v.SetDefault("observability.logging.enabled", true)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "human")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./history.db"
	}
	return filepath.Join(home, ".config", "rp", "history.db")
}
