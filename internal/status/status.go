// Package status defines the signed status codes returned across the
// control interface. Zero means success; negative values are error kinds.
// Codes reported by the hypervisor itself pass through unchanged.
package status

const (
	OK             int32 = 0
	Interrupted    int32 = -4  // lock wait cancelled
	Unavailable    int32 = -12 // allocation or mapping failure
	Fault          int32 = -14 // copy from caller-owned memory failed
	Busy           int32 = -16 // hypervisor already enabled or usage reference refused
	Invalid        int32 = -22 // validation failure or wrong state
	NotImplemented int32 = -38
)
