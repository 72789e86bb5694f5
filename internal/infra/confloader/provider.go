package confloader

import (
	"errors"
	"strings"
)

// ErrReadBytesNotSupported is returned by the map provider's ReadBytes.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form")

// mapProvider feeds a nested or dotted-key map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read expands dotted keys into nested maps, the shape the file and env
// providers produce.
func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, v := range m {
		parts := strings.Split(key, ".")
		node := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := node[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[p] = next
			}
			node = next
		}
		node[parts[len(parts)-1]] = v
	}
	return out, nil
}
