// Package errors provides structured, coded errors for configuration and
// input failures.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Configuration errors
	CodeConfigMissingParameter   Code = "CONFIG_MISSING_PARAMETER"
	CodeConfigInvalidParameter   Code = "CONFIG_INVALID_PARAMETER"
	CodeConfigInvalidCarrierType Code = "CONFIG_INVALID_CARRIER_TYPE"

	// Input errors
	CodeNetworkInvalid     Code = "NETWORK_INVALID"
	CodeNoStartChromophore Code = "NO_START_CHROMOPHORE"

	// Run errors
	CodeWorkerAborted      Code = "WORKER_ABORTED"
	CodeCheckpointMismatch Code = "CHECKPOINT_MISMATCH"
)

// IsConfiguration reports whether the code describes a failure that must be
// raised before any worker starts.
func (c Code) IsConfiguration() bool {
	switch c {
	case CodeConfigMissingParameter,
		CodeConfigInvalidParameter,
		CodeConfigInvalidCarrierType,
		CodeNetworkInvalid,
		CodeNoStartChromophore:
		return true
	default:
		return false
	}
}
