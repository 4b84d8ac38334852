// Package statsd is a helper package that wraps some common statsd methods.
// It hides the datadog dependency so if we decide to migrate away from
// datadog in the future, we only need to edit this single file.
package statsd

import (
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

var client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}

func Client() ddstatsd.ClientInterface {
	return client
}

// EmitStageStat records how long staging one operation (or one batch) took.
func EmitStageStat(start time.Time, operation string) {
	duration := time.Since(start)
	err := Client().Timing("stage", duration, []string{operation}, 1)
	if err != nil {
		log.Logger.Warn().Msgf("failed to emit stage stat: %v", err)
	}
}

// EmitCommitStat records how long a checkpoint commit took, replay and
// verification included.
func EmitCommitStat(start time.Time) {
	duration := time.Since(start)
	err := Client().Timing("commit", duration, nil, 1)
	if err != nil {
		log.Logger.Warn().Msgf("failed to emit commit stat: %v", err)
	}
}

// EmitConflict counts a commit-time checksum conflict.
func EmitConflict() {
	err := Client().Incr("commit_conflict", nil, 1)
	if err != nil {
		log.Logger.Warn().Msgf("failed to emit conflict stat: %v", err)
	}
}

func Init(address string, tags []string) error {
	if address == "" {
		return eris.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		// The statsd namespace is the prefix of all metrics
		ddstatsd.WithNamespace("lockstep"),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return err
	}
	// Success! replace the global client
	client = newClient
	return nil
}
