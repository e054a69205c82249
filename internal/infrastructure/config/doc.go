// Package config handles loading and validating the SteamCity platform configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a .env file and overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Credentials (MongoDB URI, MQTT password, InfluxDB token) should be set via
//     environment variables rather than committed YAML
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Address())
package config
