package control

import (
	"encoding/binary"
	"fmt"

	"github.com/cellbox/cellbox/internal/physmap"
)

// SystemConfigHeaderSize is the fixed part of an enable request: the
// hypervisor's reserved memory region followed by the declared length of
// the trailing parameter bytes.
const SystemConfigHeaderSize = physmap.RegionWireSize + 8

// SystemConfig is the decoded enable request. Raw is the full request
// image, header included; it is what gets placed into the mapped region
// after core and per-CPU space, so its length is the configuration size.
type SystemConfig struct {
	HypervisorMemory physmap.Region
	Params           []byte
	Raw              []byte
}

// ConfigSize is the number of configuration bytes the layout must leave
// room for.
func (c *SystemConfig) ConfigSize() uint64 { return uint64(len(c.Raw)) }

// DecodeSystemConfig parses an enable request. The trailing parameter
// length is declared in the header and validated against the received
// buffer; a short buffer is a transfer fault, not a validation error.
func DecodeSystemConfig(buf []byte) (*SystemConfig, error) {
	if len(buf) < SystemConfigHeaderSize {
		return nil, fmt.Errorf("system config truncated: %d of %d header bytes", len(buf), SystemConfigHeaderSize)
	}
	region, err := physmap.DecodeRegion(buf)
	if err != nil {
		return nil, err
	}
	paramBytes := binary.LittleEndian.Uint32(buf[physmap.RegionWireSize:])

	total := uint64(SystemConfigHeaderSize) + uint64(paramBytes)
	if total > uint64(len(buf)) {
		return nil, fmt.Errorf("system config declares %d parameter bytes, %d remain",
			paramBytes, len(buf)-SystemConfigHeaderSize)
	}

	raw := make([]byte, total)
	copy(raw, buf[:total])

	return &SystemConfig{
		HypervisorMemory: region,
		Params:           raw[SystemConfigHeaderSize:],
		Raw:              raw,
	}, nil
}

// EncodeSystemConfig builds the wire form of an enable request.
func EncodeSystemConfig(region physmap.Region, params []byte) []byte {
	buf := make([]byte, 0, SystemConfigHeaderSize+len(params))
	buf = physmap.EncodeRegion(buf, region)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(params)))
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	return append(buf, params...)
}
