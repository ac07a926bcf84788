// Package audio builds the configured audio backend.
package audio

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	appaudio "github.com/osa030/podbox/internal/app/audio"
	"github.com/osa030/podbox/internal/infra/audio/beep"
	"github.com/osa030/podbox/internal/infra/audio/simulated"
	"github.com/osa030/podbox/internal/infra/config"
)

// Backend names accepted in audio.backend.
const (
	BackendBeep      = "beep"
	BackendSimulated = "simulated"
)

// NewBackendFromConfig creates the backend selected by cfg.Backend.
func NewBackendFromConfig(cfg config.AudioConfig) (appaudio.Backend, error) {
	zlog.Debug().Msgf("creating audio backend: type=%s settings=%+v", cfg.Backend, cfg.Settings)

	var (
		backend appaudio.Backend
		err     error
	)
	switch cfg.Backend {
	case BackendBeep:
		backend, err = beep.New(cfg.Settings)
	case BackendSimulated:
		backend, err = simulated.New(cfg.Settings)
	default:
		return nil, errors.Newf("unsupported audio backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create audio backend %s", cfg.Backend)
	}

	zlog.Info().Msgf("audio backend ready: type=%s", cfg.Backend)
	return backend, nil
}
