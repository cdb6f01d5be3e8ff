package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Dhan Trader Configuration

[backend]
# Base URL of the Dhan automation backend
base_url = "http://127.0.0.1:8000"
# Per-request timeout
timeout = "10s"
# Attempts for read-only requests on network failure (orders are never retried)
retry_attempts = 2
retry_delay = "250ms"

[sync]
# How often funds, holdings, positions and orders are refreshed
interval = "30s"

[alerts]
# Webhook alert feed polling
poll_interval = "5s"
# How often expired alerts are pruned from the live view
evict_interval = "1s"
# How long an alert stays in the live view after it was polled
ttl = "20s"
# Maximum entries kept in the alert log
max_log = 200

[search]
debounce = "300ms"
min_length = 2
# NSE_EQ, BSE_EQ, NSE_FNO, MCX
default_segment = "NSE_EQ"

[trading]
# DELIVERY, CNC, INTRADAY
default_product = "DELIVERY"
# DAY, IOC
default_validity = "DAY"
# MARKET, LIMIT
default_order_type = "MARKET"
# Ask before cancelling an order
confirm_cancel = true

[logging]
# debug, info, warn, error
level = "info"
console = true
file = true

[ui]
color_enabled = true
time_format = "15:04:05"
notify_timeout = "6s"
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
