package counterstore

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownNode = errors.New("counterstore: no store endpoint for node")

// ResolveEndpoint picks the store address for nodeName from endpoints.
// Keys are matched exactly, then case-insensitively. An unknown node uses
// fallback when one is configured and fails otherwise.
func ResolveEndpoint(nodeName string, endpoints map[string]string, fallback string) (string, error) {
	if addr, ok := endpoints[nodeName]; ok && addr != "" {
		return addr, nil
	}

	for name, addr := range endpoints {
		if strings.EqualFold(name, nodeName) && addr != "" {
			return addr, nil
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("%w %q", ErrUnknownNode, nodeName)
}
