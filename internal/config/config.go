package config

import (
	"crypto/tls"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/guyfedwards/feedstash/internal/constants"
	"github.com/guyfedwards/feedstash/internal/model"
)

//go:embed default_config.yml
var defaultConfig string

var (
	ErrIncludeLoop        = errors.New("config.Load: include loop detected")
	ErrUnknownBackend     = errors.New("config.Load: unknown storage backend")
	ErrUnknownFetchMode   = errors.New("config.Load: unknown fetch mode")
	DefaultConfigDirName  = "feedstash"
	DefaultConfigFileName = "config.yml"
)

const (
	StorageBadger = "badger"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"

	FetchBackend = "backend"
	FetchDirect  = "direct"
)

// Source is a subscription seeded from the config file.
type Source struct {
	URL   string `yaml:"url"`
	Name  string `yaml:"name,omitempty"`
	Video bool   `yaml:"video,omitempty"`
}

type MinifluxBackend struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

type Backends struct {
	Miniflux *MinifluxBackend `yaml:"miniflux,omitempty"`
}

type StorageConfig struct {
	Backend string `yaml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

type FetchConfig struct {
	Mode        string `yaml:"mode,omitempty"`
	BackendURL  string `yaml:"backendurl,omitempty"`
	Timeout     int    `yaml:"timeout,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
}

type RetentionConfig struct {
	MaxItems   int `yaml:"maxitems,omitempty"`
	MaxHistory int `yaml:"maxhistory,omitempty"`
}

// Config contains YAML-serializable configuration settings
type Config struct {
	Sources     []Source           `yaml:"sources"`
	Storage     StorageConfig      `yaml:"storage"`
	Fetch       FetchConfig        `yaml:"fetch"`
	Retention   RetentionConfig    `yaml:"retention,omitempty"`
	Ordering    constants.Ordering `yaml:"ordering"`
	Backends    *Backends          `yaml:"backends,omitempty"`
	Theme       string             `yaml:"theme,omitempty"`
	Language    string             `yaml:"language,omitempty"`
	HTTPOptions *HTTPOptions       `yaml:"http,omitempty"`
	Include     []string           `yaml:"include,omitempty"`
	UserAgent   string             `yaml:"useragent,omitempty"`
}

// Runtime contains non-serializable runtime settings and the YAML config
type Runtime struct {
	ConfigPath     string
	ConfigDir      string
	PreviewSources []Source
	Version        string
	Create         bool
	Config         *Config

	storageOverride StorageConfig
}

func updateConfigPathIfDir(configPath string) string {
	stat, err := os.Stat(configPath)
	if err == nil && stat.IsDir() {
		configPath = filepath.Join(configPath, DefaultConfigFileName)
	}

	return configPath
}

// defaultStoragePath derives the storage location from the config file path.
// For example: "config.yml" -> "config.db" for sqlite, "config.badger" for badger.
func defaultStoragePath(configPath, backend string) string {
	basename := filepath.Base(configPath)
	ext := filepath.Ext(basename)
	if ext != "" {
		basename = basename[:len(basename)-len(ext)]
	}
	if backend == StorageSQLite {
		return basename + ".db"
	}
	return basename + ".badger"
}

func getConfigDir() string {
	configDir := os.Getenv("FEEDSTASH_CONFIG_DIR")
	if configDir == "" {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			userConfigDir = ""
		}

		configDir = filepath.Join(userConfigDir, DefaultConfigDirName)
	}

	return configDir
}

func New() *Runtime {
	configDir := getConfigDir()
	configPath := filepath.Join(configDir, DefaultConfigFileName)

	return &Runtime{
		ConfigPath:     configPath,
		ConfigDir:      configDir + string(filepath.Separator),
		PreviewSources: []Source{},
		Config: &Config{
			Sources: []Source{},
			Storage: StorageConfig{
				Backend: StorageBadger,
			},
			Fetch: FetchConfig{
				Mode:        FetchDirect,
				Timeout:     20,
				Concurrency: 4,
			},
			Retention: RetentionConfig{
				MaxItems:   constants.MaxTotalItems,
				MaxHistory: constants.MaxHistoryItems,
			},
			Ordering: constants.DefaultOrdering,
			Theme:    model.DefaultTheme,
			Language: model.DefaultLanguage,
			HTTPOptions: &HTTPOptions{
				MinTLSVersion: tls.VersionName(tls.VersionTLS12),
			},
		},
	}
}

func (r *Runtime) WithConfigPath(configPath string) *Runtime {
	if configPath != "" {
		r.ConfigPath = updateConfigPathIfDir(configPath)
		r.ConfigDir, _ = filepath.Split(r.ConfigPath)
	}
	return r
}

func (r *Runtime) WithPreviewSources(urls []string) *Runtime {
	if len(urls) > 0 {
		var s []Source
		for _, u := range urls {
			s = append(s, Source{URL: u})
		}
		r.PreviewSources = s
	}
	return r
}

func (r *Runtime) WithVersion(version string) *Runtime {
	r.Version = version
	return r
}

func (r *Runtime) WithCreate(create bool) *Runtime {
	r.Create = create
	return r
}

// WithStorage overrides the backend and path from the command line.
func (r *Runtime) WithStorage(backend, path string) *Runtime {
	r.storageOverride = StorageConfig{Backend: backend, Path: path}
	return r
}

func (r *Runtime) IsPreviewMode() bool {
	return len(r.PreviewSources) > 0
}

// resolveIncludePath resolves an include path relative to the config directory
// if it's not an absolute path
func resolveIncludePath(configDir, includePath string) string {
	if filepath.IsAbs(includePath) {
		return includePath
	}
	return filepath.Join(configDir, includePath)
}

func loadConfigFile(path string) (*Config, error) {
	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.loadConfigFile: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(rawData, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config.loadConfigFile: %w", err)
	}

	return &cfg, nil
}

// loadConfigWithIncludes recursively loads config files with include support
// visited tracks files already loaded to detect include loops
func (r *Runtime) loadConfigWithIncludes(configPath string, visited map[string]bool) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("config.loadConfigWithIncludes: %w", err)
	}

	if visited[absPath] {
		return nil, ErrIncludeLoop
	}
	visited[absPath] = true

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	if len(cfg.Include) > 0 {
		configDir := filepath.Dir(configPath)
		baseConfig := &Config{}

		for _, includePath := range cfg.Include {
			resolvedPath := resolveIncludePath(configDir, includePath)

			includedCfg, err := r.loadConfigWithIncludes(resolvedPath, visited)
			if err != nil {
				return nil, fmt.Errorf("config.loadConfigWithIncludes: error loading %s: %w", includePath, err)
			}

			if err := mergo.Merge(baseConfig, includedCfg, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("config.loadConfigWithIncludes: error merging %s: %w", includePath, err)
			}
		}

		// the including file wins over everything it includes
		if err := mergo.Merge(baseConfig, cfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("config.loadConfigWithIncludes: error merging base config: %w", err)
		}
		cfg = baseConfig
	}

	return cfg, nil
}

func (r *Runtime) Load() (*Runtime, error) {
	if err := r.setupConfigDir(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	// preview mode without a config file runs on the defaults from New()
	_, statErr := os.Stat(r.ConfigPath)
	if r.IsPreviewMode() && errors.Is(statErr, os.ErrNotExist) {
		r.Config.Storage = StorageConfig{Backend: StorageMemory}
		return r, nil
	}

	visited := make(map[string]bool)
	fileConfig, err := r.loadConfigWithIncludes(r.ConfigPath, visited)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if fileConfig.HTTPOptions != nil {
		if _, err := TLSVersion(fileConfig.HTTPOptions.MinTLSVersion); err != nil {
			return nil, err
		}
	}

	if err := mergo.Merge(r.Config, fileConfig, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config.Load: error merging config: %w", err)
	}

	// command line storage flags win over the file
	if err := mergo.Merge(&r.Config.Storage, r.storageOverride, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config.Load: error merging storage flags: %w", err)
	}

	if r.IsPreviewMode() {
		r.Config.Storage.Backend = StorageMemory
	}

	if err := r.validate(); err != nil {
		return nil, err
	}

	if r.Config.Storage.Path == "" && r.Config.Storage.Backend != StorageMemory {
		r.Config.Storage.Path = defaultStoragePath(r.ConfigPath, r.Config.Storage.Backend)
	}

	return r, nil
}

func (r *Runtime) validate() error {
	switch r.Config.Storage.Backend {
	case StorageBadger, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, r.Config.Storage.Backend)
	}

	switch r.Config.Fetch.Mode {
	case FetchDirect:
	case FetchBackend:
		if r.Config.Fetch.BackendURL == "" {
			return fmt.Errorf("config.Load: fetch.backendurl is required in %q mode", FetchBackend)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFetchMode, r.Config.Fetch.Mode)
	}

	return nil
}

// StoragePath resolves the storage path against the config directory.
func (r *Runtime) StoragePath() string {
	p := r.Config.Storage.Path
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.ConfigDir, p)
}

func (r *Runtime) FetchTimeout() time.Duration {
	if r.Config.Fetch.Timeout <= 0 {
		return 0
	}
	return time.Duration(r.Config.Fetch.Timeout) * time.Second
}

func (r *Runtime) GetSources() []Source {
	if r.IsPreviewMode() {
		return r.PreviewSources
	}

	return r.Config.Sources
}

func (r *Runtime) setupConfigDir() error {
	_, err := os.Stat(r.ConfigPath)

	// if configFile exists, do nothing
	if !errors.Is(err, os.ErrNotExist) {
		return nil
	}

	// preview mode runs without a config file
	if r.IsPreviewMode() {
		return nil
	}

	if !r.Create {
		return fmt.Errorf("setupConfigDir: config file does not exist: %s (use --create to create it)", r.ConfigPath)
	}

	err = os.MkdirAll(r.ConfigDir, 0755)
	if err != nil {
		return fmt.Errorf("setupConfigDir: %w", err)
	}

	err = os.WriteFile(r.ConfigPath, []byte(defaultConfig), 0644)
	if err != nil {
		return fmt.Errorf("setupConfigDir: %w", err)
	}

	return nil
}
