// Package log provides zerolog helpers for the structured event shapes this
// SDK emits: registry contents, journal operations, and commit conflicts.
package log

import (
	"github.com/rs/zerolog"

	"pkg.world.dev/lockstep/action"
	"pkg.world.dev/lockstep/journal"
)

func loadSpecIntoArrayLogger(spec *action.Spec, arrayLogger *zerolog.Array) *zerolog.Array {
	dictLogger := zerolog.Dict()
	dictLogger = dictLogger.Int32("action_code", spec.Code)
	dictLogger = dictLogger.Str("action_name", spec.Name)
	dictLogger = dictLogger.Str("execute_flags", spec.Flags.String())
	return arrayLogger.Dict(dictLogger)
}

// Actions logs every action type registered with the registry.
func Actions(logger *zerolog.Logger, registry *action.Registry, level zerolog.Level) {
	specs := registry.Specs()
	zeroLoggerEvent := logger.WithLevel(level)
	zeroLoggerEvent.Int("total_actions", len(specs))
	arrayLogger := zerolog.Arr()
	for _, spec := range specs {
		arrayLogger = loadSpecIntoArrayLogger(spec, arrayLogger)
	}
	zeroLoggerEvent.Array("actions", arrayLogger).Send()
}

// Operation logs one staged journal entry.
func Operation(logger *zerolog.Logger, level zerolog.Level, registry *action.Registry, entry journal.Entry) {
	zeroLoggerEvent := logger.WithLevel(level)
	zeroLoggerEvent.Stringer("kind", entry.Kind)
	zeroLoggerEvent.Stringer("position", entry.Position)
	zeroLoggerEvent.Stringer("result", entry.Result)
	if entry.HasChecksum {
		zeroLoggerEvent.Stringer("checksum", entry.Checksum)
	}
	if entry.Action != nil {
		if spec, ok := registry.LookupType(entry.Action); ok {
			zeroLoggerEvent.Str("action", spec.Name)
		}
		zeroLoggerEvent.Uint64("invoker", uint64(entry.Action.InvokingPlayer()))
	}
	zeroLoggerEvent.Send()
}

// Conflict logs the suspect range of a commit conflict.
func Conflict(logger *zerolog.Logger, res journal.CommitResult) {
	logger.Error().
		Stringer("expected", res.ExpectedChecksum).
		Stringer("actual", res.ActualChecksum).
		Stringer("first_suspect", res.FirstSuspectOperation).
		Stringer("last_suspect", res.LastSuspectOperation).
		Msg("commit conflict")
}
