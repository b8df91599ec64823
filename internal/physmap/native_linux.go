//go:build linux

package physmap

// Native returns the platform's physical memory mapper.
func Native() (Mapper, error) {
	return DevMem{}, nil
}
