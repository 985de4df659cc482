// Package config loads typed configuration structs from environment variables
// with caching per configuration type.
//
// Configuration structs declare their sources via `env` field tags (parsed by
// github.com/caarlos0/env); a .env file in the working directory is loaded
// once, transparently, before the first parse. Each configuration type is
// parsed exactly once per process and cached, so packages can call Load for
// their own Config without coordinating initialization order.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
package config
