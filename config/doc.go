// Package config loads service configuration from a YAML file, an optional
// .env file and the process environment.
//
// Files are discovered next to the service binary sources
// (./cmd/<service>/config.yml) or in the working directory. Environment
// variables override file values; the variable name is the upper-cased,
// underscore-joined key path (SERVER_PORT overrides server.port).
//
// # Usage
//
//	var cfg AppConfig
//	if err := config.LoadConfig("diarizer", &cfg); err != nil {
//	    return err
//	}
package config
