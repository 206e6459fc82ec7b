package utils

import (
	"time"

	"github.com/rs/zerolog/log"
)

func Bench(start time.Time, msg string) {
	elapsed := time.Since(start)

	log.Debug().Str("elapsed", elapsed.String()).Msg("end tracking " + msg)
}

// Bench2 logs how long the caller took. Use as defer utils.Bench2("x")().
func Bench2(msg string) func() {
	start := time.Now()

	log.Debug().Time("start", start).Msg("start tracking " + msg)

	return func() {
		Bench(start, msg)
	}
}
