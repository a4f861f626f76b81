package input

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
)

// requiredParams must be present in every parameter document.
var requiredParams = []string{
	"system_temperature",
	"simulation_times",
	"record_carrier_history",
	"combine_KMC_results",
	"proc_IDs",
}

// LoadParams reads a parameter document from path.
func LoadParams(path string) (domain.Params, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return domain.Params{}, apperrors.New(apperrors.CodeConfigMissingParameter, "params path is required")
	}
	data, err := os.ReadFile(trimmed)
	if err != nil {
		return domain.Params{}, fmt.Errorf("read params file: %w", err)
	}
	params, err := ReadParams(bytes.NewReader(data))
	if err != nil {
		return domain.Params{}, fmt.Errorf("load params %s: %w", trimmed, err)
	}
	return params, nil
}

// ReadParams decodes and validates a parameter document. Missing optional
// keys keep their defaults; unknown keys are rejected.
func ReadParams(r io.Reader) (domain.Params, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return domain.Params{}, apperrors.Wrap(apperrors.CodeConfigInvalidParameter, "decode params document", err)
	}
	return DecodeParams(raw)
}

// DecodeParams maps raw key/value pairs onto Params.
func DecodeParams(raw map[string]any) (domain.Params, error) {
	var missing []string
	for _, key := range requiredParams {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.Params{}, apperrors.WithMetadata(
			apperrors.CodeConfigMissingParameter,
			fmt.Sprintf("missing required parameters: %s", strings.Join(missing, ", ")),
			map[string]string{"parameter": missing[0]},
		)
	}

	params := domain.DefaultParams()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &params,
	})
	if err != nil {
		return domain.Params{}, fmt.Errorf("build params decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return domain.Params{}, apperrors.Wrap(apperrors.CodeConfigInvalidParameter, "decode params", err)
	}
	if err := params.Validate(); err != nil {
		return domain.Params{}, err
	}
	return params, nil
}
