// Package config provides configuration management for the template worker.
//
// Configuration is loaded from environment variables and validated on startup.
// All configuration options have sensible defaults for development.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
//
// Templates are registered from TEMPLATE_DIR (files ending in TEMPLATE_EXT)
// and from the Redis hash named by TEMPLATE_HASH.
package config
