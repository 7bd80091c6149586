package retain

import (
	"encoding/binary"
	"errors"
)

// CurrentVersion is the layout version written by Save.
const CurrentVersion uint16 = 1

// RecordSize is the encoded size of a Record.
const RecordSize = 12

// ErrInvalidRecord is returned for data of the wrong size.
var ErrInvalidRecord = errors.New("retain: invalid record")

// Record is the state kept across sleeps and resets.
type Record struct {
	Version   uint16
	BootCount uint32
	Mode      uint8 // Sleep mode entered last, 0 if none
	Slept     bool  // Set while asleep, cleared on wake
	Reason    uint8 // Wake reason of the current boot
}

// MarshalBinary encodes r in little endian:
//
//	[0:2]  Version
//	[2:6]  BootCount
//	[6]    Mode
//	[7]    Slept
//	[8]    Reason
//	[9:12] reserved, zero
func (r *Record) MarshalBinary() ([]byte, error) {
	b := make([]byte, RecordSize)
	binary.LittleEndian.PutUint16(b[0:], r.Version)
	binary.LittleEndian.PutUint32(b[2:], r.BootCount)
	b[6] = r.Mode
	if r.Slept {
		b[7] = 1
	}
	b[8] = r.Reason
	return b, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return ErrInvalidRecord
	}
	r.Version = binary.LittleEndian.Uint16(data[0:])
	r.BootCount = binary.LittleEndian.Uint32(data[2:])
	r.Mode = data[6]
	r.Slept = data[7] != 0
	r.Reason = data[8]
	return nil
}
