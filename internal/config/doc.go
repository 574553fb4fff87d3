// Package config handles configuration loading for the support chat client.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and duration parsing.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	gateway:
//	  api_access_token: "${SUPPORT_API_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	bot:
//	  timeout: "10s"
//	transports:
//	  poll_interval: "5s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Ticketing gateway:
//
//	gateway:
//	  base_url: "https://support.example.com"
//	  account_id: 7
//	  inbox_id: 3
//	  api_access_token: "${SUPPORT_API_TOKEN}"
//
// Push channel:
//
//	websocket:
//	  url: "wss://support.example.com/cable"
//
// FAQ bot:
//
//	bot:
//	  endpoint: "https://bot.example.com/query"
//	  timeout: "10s"
//
// Customer identity used for contact creation:
//
//	customer:
//	  name: "Jane Shopper"
//	  email: "jane@example.com"
//	  phone_number: "+15550100"
//
// Delivery transports:
//
//	transports:
//	  poll_interval: "5s"
//
// Bot-mode greeting and canned topics:
//
//	faq:
//	  greeting: "Hi! How can I help you today?"
//	  topics:
//	    - "Where is my order?"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
