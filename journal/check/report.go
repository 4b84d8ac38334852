package check

import (
	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"

	"pkg.world.dev/lockstep/types"
)

// violation builds the error for a detected invariant breach, embedding a
// structural before/after field-path diff of the two serialized states. Both
// inputs must be valid JSON (canonical or full codec output).
func violation(msg string, before, after []byte) error {
	patch, err := jsondiff.CompareJSON(before, after)
	if err != nil {
		return eris.Wrapf(err, "%s (diff unavailable)", msg)
	}
	if len(patch) == 0 {
		return eris.Errorf("%s (states differ in bytes but not structurally; before=%s after=%s)",
			msg, before, after)
	}
	return eris.Errorf("%s; diff: %s", msg, patch.String())
}

// violationChecksum is the report form for mismatches where only the two
// checksum values are available.
func violationChecksum(msg string, expected, actual types.Checksum) error {
	return eris.Errorf("%s: expected %s, actual %s", msg, expected, actual)
}
