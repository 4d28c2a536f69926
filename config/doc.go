// Package config loads service configuration with viper.
//
// A YAML file found under cmd/<service>/, config/ or the working directory is
// the base layer. Environment variables override it, with nested keys mapped
// from underscores (FLUSH_MIN_CHUNK_SIZE sets flush.min_chunk_size). A .env
// file next to the config is loaded with godotenv before binding.
//
// # Usage
//
//	var cfg Config
//	if err := config.LoadConfig("chatstreamd", &cfg); err != nil {
//	    return err
//	}
package config
