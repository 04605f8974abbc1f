package common

import (
	"encoding/binary"
)

// Little-endian byte helpers for the on-disk record encoding. Appending to a
// caller-supplied buffer keeps hot write paths allocation free.

func AppendUint64ToBufferLE(buffer []byte, v uint64) []byte {
	return append(buffer, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32),
		byte(v>>40), byte(v>>48), byte(v>>56))
}

func ReadUint64FromBufferLE(buffer []byte, offset int) (uint64, int) {
	return binary.LittleEndian.Uint64(buffer[offset:]), offset + 8
}
