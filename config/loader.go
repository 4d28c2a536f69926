package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/chatstream/logger"
)

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
	Getwd() (string, error)
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

func (rfs *RealFileSystem) Getwd() (string, error) {
	return os.Getwd()
}

// Resolver handles finding and resolving config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles finds config and env files for a service.
// Returns explicit paths if provided, otherwise searches for them.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}

	if resolved.ConfigFile == "" {
		resolved.ConfigFile = cr.findConfigFile(serviceName)
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = cr.findEnvFile(serviceName)
	}

	return resolved
}

// findConfigFile searches for config.yml (or config.yaml) under cmd/<service>,
// config/ and the working directory, nearest first.
func (cr *Resolver) findConfigFile(serviceName string) string {
	var searchPaths []string
	for _, name := range []string{"config.yml", "config.yaml"} {
		searchPaths = append(searchPaths, pathsByPrefix(fmt.Sprintf("cmd/%s", serviceName), name)...)
		searchPaths = append(searchPaths, pathsByPrefix("config", name)...)
		searchPaths = append(searchPaths, "./"+name)
	}

	for _, path := range searchPaths {
		if cr.FileSystem.Exists(path) {
			return path
		}
	}
	return ""
}

// findEnvFile searches for .env.<service> then .env in the same locations
// as the config file.
func (cr *Resolver) findEnvFile(serviceName string) string {
	for _, envFile := range []string{".env." + serviceName, ".env"} {
		for _, path := range buildEnvSearchPaths(serviceName, envFile) {
			if cr.FileSystem.Exists(path) {
				return path
			}
		}
	}
	return ""
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// LoadConfig loads configuration for a service into cfg. The YAML file is the
// base layer; the process environment and the resolved .env file override it.
// If cfg implements Config, defaults are applied and the result validated.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	if err := loadFromResolvedFiles(serviceName, cfg, files, lc.FileSystem); err != nil {
		return err
	}
	if c, ok := cfg.(Config); ok {
		c.ApplyDefaults()
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config for service %s: %w", serviceName, err)
		}
	}
	return nil
}

// loadFromResolvedFiles loads configuration from specific files.
func loadFromResolvedFiles(serviceName string, cfg interface{}, files ResolvedFiles, fs FileSystem) error {
	v := viper.New()

	log := logger.WithComponent("config")

	if files.ConfigFile != "" && fs.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			log.Warn("failed to load config file", logger.Fields("file", files.ConfigFile, logger.FieldError, err.Error()))
		} else {
			log.Debug("config file loaded", logger.Fields("file", files.ConfigFile))
		}
	}

	v.AutomaticEnv()

	// .env values never override variables already set in the process.
	if files.EnvFile != "" && fs.Exists(files.EnvFile) {
		if err := fs.LoadEnv(files.EnvFile); err != nil {
			log.Warn("failed to load env file", logger.Fields("file", files.EnvFile, logger.FieldError, err.Error()))
		}
	}
	autoBindEnvVars(v)

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}

	return nil
}

// buildEnvSearchPaths creates a list of paths to search for .env files.
func buildEnvSearchPaths(serviceName, envFileName string) []string {
	primaryPaths := pathsByPrefix(fmt.Sprintf("cmd/%s", serviceName), envFileName)
	configServicePaths := pathsByPrefix(fmt.Sprintf("config/%s", serviceName), envFileName)
	configPaths := pathsByPrefix("config", envFileName)
	rootPaths := pathsByPrefix("", envFileName)

	paths := make([]string, 0, len(primaryPaths)+len(configServicePaths)+len(configPaths)+len(rootPaths))
	paths = append(paths, primaryPaths...)
	paths = append(paths, configServicePaths...)
	paths = append(paths, configPaths...)
	paths = append(paths, rootPaths...)

	return paths
}

func pathsByPrefix(path, fileName string) []string {
	if path == "" {
		return []string{
			fmt.Sprintf("./%s", fileName),
			fmt.Sprintf("../%s", fileName),
			fmt.Sprintf("../../%s", fileName),
			fileName,
		}
	}
	return []string{
		fmt.Sprintf("./%s/%s", path, fileName),
		fmt.Sprintf("../%s/%s", path, fileName),
		fmt.Sprintf("../../%s/%s", path, fileName),
	}
}

// autoBindEnvVars automatically binds environment variables to Viper
// by converting UPPER_CASE_WITH_UNDERSCORES to multiple possible nested key formats.
func autoBindEnvVars(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}

		key := pair[0]
		value := pair[1]

		variants := generateEnvKeyVariants(key)
		for _, variant := range variants {
			v.Set(variant, value)
		}
	}
}

// generateEnvKeyVariants creates the nested key variants an env var may map to.
//
//	FLUSH_MIN_CHUNK_SIZE -> [flush_min_chunk_size, flush.min.chunk.size, flush.min_chunk_size, ...]
//	BEDROCK_REGION       -> [bedrock_region, bedrock.region]
func generateEnvKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")

	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{
		lowerKey,
		strings.ReplaceAll(lowerKey, "_", "."),
	}

	// Generate progressive nesting patterns
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		suffix := strings.Join(parts[i:], "_")
		variants = append(variants, prefix+"."+suffix)
	}

	for i := 2; i <= len(parts); i++ {
		prefix := strings.Join(parts[:i-1], ".")
		suffix := strings.Join(parts[i-1:], "_")
		if i < len(parts) {
			variants = append(variants, prefix+"."+suffix)
		}
	}

	if len(parts) >= 3 {
		prefix := strings.Join(parts[:len(parts)-1], ".")
		lastPart := parts[len(parts)-1]
		variants = append(variants, prefix+"."+lastPart)
	}

	return removeDuplicates(variants)
}

// removeDuplicates removes duplicate strings from a slice.
func removeDuplicates(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
