// Package config loads docsmcp configuration from layered YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the per-directory configuration file.
const ProjectFileName = ".docsmcp.yaml"

// Config represents the complete docsmcp configuration.
type Config struct {
	Version int `yaml:"version"`

	// DataDir holds the vector store, its backup and the hash ledger.
	DataDir string `yaml:"data_dir,omitempty"`
	// ReposDir is where git projects are cloned.
	ReposDir string `yaml:"repos_dir,omitempty"`

	// BestPracticesDirs hold per-package best-practice guides, highest
	// precedence first. Each config layer puts its directories in front.
	BestPracticesDirs []string `yaml:"best_practices_dirs,omitempty"`

	IndexPatterns   []string        `yaml:"index_patterns,omitempty"`
	ExcludePatterns []string        `yaml:"exclude_patterns,omitempty"`
	Projects        []ProjectConfig `yaml:"projects,omitempty"`

	Index      IndexConfig      `yaml:"index"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Server     ServerConfig     `yaml:"server"`
}

// ProjectConfig describes one documentation source.
type ProjectConfig struct {
	Name string `yaml:"name"`
	// URL is a git remote. Mutually exclusive with Path.
	URL string `yaml:"url,omitempty"`
	// Path is a local checkout read in place.
	Path   string `yaml:"path,omitempty"`
	Branch string `yaml:"branch,omitempty"`
	// Folders maps a documentation folder inside the repository to the URL
	// path it is published under.
	Folders           map[string]FolderConfig `yaml:"folders,omitempty"`
	BaseURL           string                  `yaml:"base_url,omitempty"`
	ReferencePatterns []string                `yaml:"reference_patterns,omitempty"`
}

// FolderConfig maps a repository folder to its published URL path.
type FolderConfig struct {
	URLPath string `yaml:"url_path"`
}

// IndexConfig tunes the Index Manager and Chunker.
type IndexConfig struct {
	MinSectionSize       int  `yaml:"min_section_size"`
	MaxBatchSize         int  `yaml:"max_batch_size"`
	SkipBackupForPartial bool `yaml:"skip_backup_for_partial"`
}

// SearchConfig tunes the Retrieval Engine.
type SearchConfig struct {
	MaxResults      int `yaml:"max_results"`
	OverFetch       int `yaml:"over_fetch"`
	MaxContentChars int `yaml:"max_content_chars"`
}

// EmbeddingsConfig selects the embedder.
type EmbeddingsConfig struct {
	// Provider is "ollama", "static" or empty for auto-detection.
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	OllamaHost string `yaml:"ollama_host"`
	CacheSize  int    `yaml:"cache_size"`
}

// IngestConfig tunes the Ingestion Orchestrator.
type IngestConfig struct {
	Workers        int    `yaml:"workers"`
	AcquireTimeout string `yaml:"acquire_timeout"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Transport is stdio or http.
	Transport string `yaml:"transport"`

	// HTTPAddr is the listen address of the http transport.
	HTTPAddr string `yaml:"http_addr,omitempty"`

	LogLevel      string `yaml:"log_level"`
	MetricsAddr   string `yaml:"metrics_addr,omitempty"`
	Watch         bool   `yaml:"watch"`
	WatchDebounce string `yaml:"watch_debounce"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version:         1,
		DataDir:         filepath.Join(homeDir(), ".docsmcp", "data"),
		ReposDir:        filepath.Join(homeDir(), ".docsmcp", "repos"),
		IndexPatterns:   []string{"**/*.md", "**/*.rst", "**/*.txt", "**/*.ipynb"},
		ExcludePatterns: []string{"**/.git/**", "**/node_modules/**", "**/_build/**", "**/.ipynb_checkpoints/**"},
		BestPracticesDirs: []string{
			filepath.Join(homeDir(), ".docsmcp", "best-practices"),
		},
		Index: IndexConfig{
			MinSectionSize: 100,
			MaxBatchSize:   1000,
		},
		Search: SearchConfig{
			MaxResults:      5,
			OverFetch:       3,
			MaxContentChars: 10000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Ingest: IngestConfig{
			Workers:        4,
			AcquireTimeout: "5m",
		},
		Server: ServerConfig{
			Transport:     "stdio",
			LogLevel:      "info",
			WatchDebounce: "2s",
		},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}

// UserConfigPath returns $XDG_CONFIG_HOME/docsmcp/config.yaml, falling back
// to ~/.config/docsmcp/config.yaml.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsmcp", "config.yaml")
	}
	return filepath.Join(homeDir(), ".config", "docsmcp", "config.yaml")
}

// Load builds the configuration for dir. Precedence, lowest first:
//  1. Built-in defaults
//  2. User config (UserConfigPath)
//  3. Project config (.docsmcp.yaml in dir)
//  4. DOCSMCP_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := UserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath, filepath.Dir(userPath)); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	projectPath := filepath.Join(dir, ProjectFileName)
	if fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath, dir); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML merges the file at path into c. Relative directories in the file
// resolve against base.
func (c *Config) loadYAML(path, base string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	parsed.DataDir = resolve(base, parsed.DataDir)
	parsed.ReposDir = resolve(base, parsed.ReposDir)
	for i := range parsed.BestPracticesDirs {
		parsed.BestPracticesDirs[i] = resolve(base, parsed.BestPracticesDirs[i])
	}
	for i := range parsed.Projects {
		parsed.Projects[i].Path = resolve(base, parsed.Projects[i].Path)
	}

	c.mergeWith(&parsed)
	return nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return filepath.Join(base, p)
}

// mergeWith copies non-zero values from other into c. Projects merge by name.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.ReposDir != "" {
		c.ReposDir = other.ReposDir
	}
	if len(other.BestPracticesDirs) > 0 {
		c.BestPracticesDirs = prependDirs(other.BestPracticesDirs, c.BestPracticesDirs)
	}
	if len(other.IndexPatterns) > 0 {
		c.IndexPatterns = other.IndexPatterns
	}
	if len(other.ExcludePatterns) > 0 {
		c.ExcludePatterns = append(c.ExcludePatterns, other.ExcludePatterns...)
	}

	for _, p := range other.Projects {
		replaced := false
		for i := range c.Projects {
			if c.Projects[i].Name == p.Name {
				c.Projects[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			c.Projects = append(c.Projects, p)
		}
	}

	if other.Index.MinSectionSize != 0 {
		c.Index.MinSectionSize = other.Index.MinSectionSize
	}
	if other.Index.MaxBatchSize != 0 {
		c.Index.MaxBatchSize = other.Index.MaxBatchSize
	}
	if other.Index.SkipBackupForPartial {
		c.Index.SkipBackupForPartial = true
	}

	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.OverFetch != 0 {
		c.Search.OverFetch = other.Search.OverFetch
	}
	if other.Search.MaxContentChars != 0 {
		c.Search.MaxContentChars = other.Search.MaxContentChars
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Ingest.Workers != 0 {
		c.Ingest.Workers = other.Ingest.Workers
	}
	if other.Ingest.AcquireTimeout != "" {
		c.Ingest.AcquireTimeout = other.Ingest.AcquireTimeout
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.HTTPAddr != "" {
		c.Server.HTTPAddr = other.Server.HTTPAddr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.MetricsAddr != "" {
		c.Server.MetricsAddr = other.Server.MetricsAddr
	}
	if other.Server.Watch {
		c.Server.Watch = true
	}
	if other.Server.WatchDebounce != "" {
		c.Server.WatchDebounce = other.Server.WatchDebounce
	}
}

// prependDirs returns front followed by rest, without duplicates.
func prependDirs(front, rest []string) []string {
	out := make([]string, 0, len(front)+len(rest))
	seen := make(map[string]bool, len(front)+len(rest))
	for _, d := range append(append([]string{}, front...), rest...) {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCSMCP_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DOCSMCP_REPOS_DIR"); v != "" {
		c.ReposDir = v
	}
	if v := os.Getenv("DOCSMCP_BEST_PRACTICES_DIRS"); v != "" {
		c.BestPracticesDirs = prependDirs(filepath.SplitList(v), c.BestPracticesDirs)
	}
	if v := os.Getenv("DOCSMCP_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCSMCP_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCSMCP_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("DOCSMCP_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("DOCSMCP_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("DOCSMCP_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("DOCSMCP_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	if v := os.Getenv("DOCSMCP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.Workers = n
		}
	}
	if v := os.Getenv("DOCSMCP_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
}

// Validate checks ranges and project definitions.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if c.Index.MinSectionSize < 0 {
		return fmt.Errorf("index.min_section_size must be non-negative, got %d", c.Index.MinSectionSize)
	}
	if c.Index.MaxBatchSize <= 0 {
		return fmt.Errorf("index.max_batch_size must be positive, got %d", c.Index.MaxBatchSize)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.OverFetch < 1 {
		return fmt.Errorf("search.over_fetch must be at least 1, got %d", c.Search.OverFetch)
	}
	if c.Search.MaxContentChars < 0 {
		return fmt.Errorf("search.max_content_chars must be non-negative, got %d", c.Search.MaxContentChars)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if _, err := time.ParseDuration(c.Ingest.AcquireTimeout); err != nil {
		return fmt.Errorf("ingest.acquire_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Server.WatchDebounce); err != nil {
		return fmt.Errorf("server.watch_debounce: %w", err)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "", "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be 'ollama', 'static' or empty (auto-detect), got %s", c.Embeddings.Provider)
	}
	switch strings.ToLower(c.Server.Transport) {
	case "stdio":
	case "http":
		if c.Server.HTTPAddr == "" {
			return fmt.Errorf("server.http_addr must be set for the http transport")
		}
	default:
		return fmt.Errorf("server.transport must be 'stdio' or 'http', got %s", c.Server.Transport)
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	seen := make(map[string]bool, len(c.Projects))
	for _, p := range c.Projects {
		if p.Name == "" {
			return fmt.Errorf("project name must not be empty")
		}
		if strings.ContainsAny(p.Name, "/\\") {
			return fmt.Errorf("project %q: name must not contain path separators", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("project %q is defined twice", p.Name)
		}
		seen[p.Name] = true
		if (p.URL == "") == (p.Path == "") {
			return fmt.Errorf("project %q: exactly one of url or path must be set", p.Name)
		}
	}
	return nil
}

// AcquireTimeout returns the per-project acquisition timeout.
func (c *Config) AcquireTimeout() time.Duration {
	d, err := time.ParseDuration(c.Ingest.AcquireTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// WatchDebounce returns the watcher debounce window.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Server.WatchDebounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Project returns the named project.
func (c *Config) Project(name string) (ProjectConfig, bool) {
	for _, p := range c.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return ProjectConfig{}, false
}

// ProjectNames lists configured project names in configuration order.
func (c *Config) ProjectNames() []string {
	names := make([]string, 0, len(c.Projects))
	for _, p := range c.Projects {
		names = append(names, p.Name)
	}
	return names
}

// IsLocal reports whether the project is read from a local directory.
func (p ProjectConfig) IsLocal() bool {
	return p.Path != ""
}

// DocFolders returns the configured folders, defaulting to the repository
// root when none are set.
func (p ProjectConfig) DocFolders() map[string]FolderConfig {
	if len(p.Folders) == 0 {
		return map[string]FolderConfig{"": {}}
	}
	return p.Folders
}

// StoreDir is the primary vector store directory.
func (c *Config) StoreDir() string {
	return filepath.Join(c.DataDir, "vectors")
}

// LedgerPath is the hash ledger file.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "hash_ledger.json")
}

// FindProjectRoot walks up from startDir to the first directory holding a
// .docsmcp.yaml or a .git directory. Falls back to startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absDir
	for {
		if fileExists(filepath.Join(current, ProjectFileName)) || dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
