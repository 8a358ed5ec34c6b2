package questionnaire

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"protosched/internal/config"
	"protosched/internal/protocol"
)

// LoadProtocolFile reads a JSON or YAML list of assessments, validates every
// entry and returns them with a canonical content hash.
func LoadProtocolFile(path string) ([]protocol.Assessment, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return ParseProtocol(path, b)
}

// ParseProtocol is LoadProtocolFile over bytes; path only selects the format.
func ParseProtocol(path string, data []byte) ([]protocol.Assessment, string, error) {
	var list []protocol.Assessment
	if err := config.DecodeStrict(path, data, &list); err != nil {
		return nil, "", fmt.Errorf("parse protocol: %w", err)
	}

	seen := map[string]struct{}{}
	var errs []error
	for _, a := range list {
		if err := a.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[a.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate name %q", protocol.ErrInvalid, a.Name))
		}
		seen[a.Name] = struct{}{}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, "", err
	}

	canon, err := json.Marshal(list)
	if err != nil {
		return nil, "", err
	}
	return list, fmt.Sprintf("%016x", config.CanonicalHash(canon)), nil
}
