// Package config loads client configuration.
//
// Sources, lowest to highest precedence:
//   - Built-in defaults (struct tags)
//   - A .env file in the working directory
//   - Environment variables (12-factor)
//   - An optional YAML or TOML file passed to LoadFile
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := chat.NewClient(chat.Options{BaseURL: cfg.Backend.APIURL}, store, logger)
package config
