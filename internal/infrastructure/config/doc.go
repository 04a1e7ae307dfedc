// Package config handles loading and validating harmony-api configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Loading a .env file from the working directory
//   - Overriding with HARMONY_API_* environment variables
//   - Validation of required fields
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Namespace)
package config
