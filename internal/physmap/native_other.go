//go:build !linux

package physmap

import "fmt"

// Native returns the platform's physical memory mapper.
func Native() (Mapper, error) {
	return nil, fmt.Errorf("no physical memory mapper on this platform")
}
