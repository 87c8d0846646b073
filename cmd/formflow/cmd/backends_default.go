//go:build !gocv

package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/formflow/internal/config"
	"github.com/MeKo-Tech/formflow/internal/matcher"
)

func newBackend(cfg *config.Config) (matcher.Backend, error) {
	if cfg.Templates.Backend != config.BackendORB {
		return nil, fmt.Errorf("matching backend %q needs a build with the gocv tag", cfg.Templates.Backend)
	}
	return newORBBackend(cfg), nil
}
