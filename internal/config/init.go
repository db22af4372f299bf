package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# pagesmith configuration
server:
  listen: ":8080"
  secret: "${PAGESMITH_SECRET}"
  cors_origins: []

generation:
  provider: gemini            # gemini | openai
  api_key: "${GEMINI_API_KEY}"
  model: gemini-2.5-flash
  timeout: 180s

forge:
  type: github
  owner: your-github-user
  owner_type: user            # user | org
  token: "${GITHUB_TOKEN}"
  branch: main
  commit_strategy: api        # api | git

deploy:
  poll_interval: 10s
  timeout: 10m
  request_timeout: 15s
  probe_url: true

notify:
  timeout: 15s
  max_attempts: 5
  initial_delay: 1s

retry:
  backoff: exponential
  initial_delay: 2s
  max_delay: 60s
  max_retries: 3

queue:
  workers: 4
  size: 100
  job_timeout: 20m

idempotency:
  backend: sqlite             # memory | sqlite | nats
  sqlite_path: ./pagesmith.db
  retention: 168h
  pending_ttl: 1h
  prune_interval: 15m

monitoring:
  metrics:
    enabled: true
    path: /metrics
  logging:
    level: info
    format: text
`

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
