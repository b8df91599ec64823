//go:build !linux

package barrier

func pinToCPU(cpu int) {}
