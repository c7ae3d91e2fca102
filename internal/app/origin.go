package app

import (
	"net/http"
	"sync"

	"github.com/JongoDB/arc4de/internal/config"
	"github.com/JongoDB/arc4de/internal/origin"

	"github.com/rs/zerolog/log"
)

var warnAllowedOriginsOnce sync.Once

func getCheckOrigin(cfg config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.Client.AllowedOrigins
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		warnAllowedOriginsOnce.Do(func() {
			log.Warn().Msg("usage of allowed_origins * is discouraged for security reasons, consider setting exact list of origins")
		})
		return func(r *http.Request) bool {
			return true
		}
	}
	originChecker, err := origin.NewChecker(allowedOrigins)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating origin checker")
	}
	return func(r *http.Request) bool {
		if err := originChecker.Check(r); err != nil {
			log.Info().Str("origin", r.Header.Get("Origin")).Strs("allowed_origins", allowedOrigins).Msg("request Origin is not authorized")
			return false
		}
		return true
	}
}
