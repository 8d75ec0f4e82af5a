package checksum

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

var checkInput = []byte("123456789")

func TestCRC8_CheckValue(t *testing.T) {
	assert.Equal(t, uint8(0xF4), CRC8(checkInput))
	assert.Equal(t, uint8(0x00), CRC8(nil))
}

func TestCRC16_CheckValues(t *testing.T) {
	assert.Equal(t, uint16(0x4FF7), CRC16(checkInput))
	assert.Equal(t, uint16(0x31C3), Checksum16(checkInput, MakeTable16(CCITT16)))
	assert.Equal(t, uint16(0x14C9), CRC16([]byte{149}))
}

func TestUpdate_Incremental(t *testing.T) {
	tab16 := MakeTable16(Primitive16)
	crc16 := Update16(0, tab16, checkInput[:4])
	crc16 = Update16(crc16, tab16, checkInput[4:])
	assert.Equal(t, CRC16(checkInput), crc16)

	tab8 := MakeTable8(ATM8)
	crc8 := Update8(0, tab8, checkInput[:5])
	crc8 = Update8(crc8, tab8, checkInput[5:])
	assert.Equal(t, CRC8(checkInput), crc8)
}

func TestCRC16_AppendedChecksumLeavesZeroResidue(t *testing.T) {
	values := [][]byte{{149}, checkInput, make([]byte, 254)}
	for _, v := range values {
		codeword := binary.BigEndian.AppendUint16(append([]byte(nil), v...), CRC16(v))
		assert.Equal(t, uint16(0), CRC16(codeword), "value %x", v)
	}
}

func TestCRC_DetectsSingleByteChange(t *testing.T) {
	data := []byte{0x02, 0x04, 0x01}
	base8, base16 := CRC8(data), CRC16(data)
	for i := range data {
		for _, mask := range []byte{0x01, 0x80, 0x5A, 0xFF} {
			damaged := append([]byte(nil), data...)
			damaged[i] ^= mask
			assert.NotEqual(t, base8, CRC8(damaged))
			assert.NotEqual(t, base16, CRC16(damaged))
		}
	}
}
