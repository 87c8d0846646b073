//go:build gocv

package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/formflow/internal/config"
	"github.com/MeKo-Tech/formflow/internal/matcher"
	"github.com/MeKo-Tech/formflow/internal/matcher/cvmatch"
)

func newBackend(cfg *config.Config) (matcher.Backend, error) {
	switch cfg.Templates.Backend {
	case config.BackendORB:
		return newORBBackend(cfg), nil
	case config.BackendSIFT, config.BackendORBCV:
		if err := cvmatch.Validate(); err != nil {
			return nil, err
		}
		if cfg.Templates.Backend == config.BackendSIFT {
			return cvmatch.NewSIFT(cfg.Templates.Ratio), nil
		}
		return cvmatch.NewORB(cfg.Templates.Features, float64(cfg.Templates.MaxDistance)), nil
	default:
		return nil, fmt.Errorf("unknown matching backend %q", cfg.Templates.Backend)
	}
}
