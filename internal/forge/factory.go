package forge

import (
	"net/http"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// New creates the Provisioner for the configured forge type. Committer
// selection is left to the caller through WithCommitter.
func New(cfg config.ForgeConfig, opts ...GitHubOption) (Provisioner, error) {
	switch cfg.Type {
	case config.ForgeGitHub, "":
		client := &http.Client{Timeout: cfg.RequestTimeoutDuration()}
		return NewGitHub(client, cfg, opts...), nil
	default:
		return nil, errors.ConfigError("unsupported forge type").
			WithContext("type", string(cfg.Type)).
			Build()
	}
}
