// Package config loads ember's configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/ember/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. EMBER_* variables from a .env file beside the config file override
//  6. EMBER_* variables in the process environment override everything
//
// # Default Values
//
//   - Config file: ~/.config/ember/config.toml
//   - Server: http://127.0.0.1:8080
//   - Data directory: ~/.local/share/ember (log file and response cache)
//   - Video list refresh: 10s
//   - Processing status poll: 3s, giving up after 30m
//
// # TOML Format
//
//	server_url = "https://clips.example.com"
//	username = "admin"
//	data_dir = "~/.local/share/ember"
//	poll_interval = "10s"
//	processing_interval = "3s"
//	processing_timeout = "30m"
//
// Intervals accept Go duration strings or bare seconds. The password is only
// read from EMBER_PASSWORD so it never has to live in the config file.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than a
// missing file, TOML parse errors and malformed intervals. A missing .env
// file is not an error.
package config
