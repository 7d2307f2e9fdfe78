// Package config loads runtime configuration for the foliokeeper CLI.
//
// Sources, later wins:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags.
//
// The JSON loader uses timex.Duration, so intervals can be strings like
// "3s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080/api/v1",
//	  "online_check_interval": "3s",
//	  "request_timeout": "10s",
//	  "session_db_path": "session.db",
//	  "log_level": "warn"
//	}
package config
