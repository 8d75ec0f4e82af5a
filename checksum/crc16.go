package checksum

const (
	// Primitive16 is x^16+x^5+x^3+x^2+1. It is primitive, so its syndromes
	// are distinct for every bit of a codeword up to 65535 bits long.
	Primitive16 uint16 = 0x002D
	// CCITT16 is x^16+x^12+x^5+1 (CRC-16/XMODEM). Fine for detection, but
	// not primitive: single-bit correction cannot be built on it.
	CCITT16 uint16 = 0x1021
)

// Size of a CRC-16 checksum in bytes.
const Size16 = 2

// Table16 is a 256-word table representing a CRC-16 polynomial.
type Table16 [256]uint16

var primitiveTable16 = MakeTable16(Primitive16)

// MakeTable16 returns the Table16 for the given polynomial, high bit implicit.
func MakeTable16(poly uint16) *Table16 {
	t := new(Table16)
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Update16 returns the result of adding the bytes in p to the crc.
func Update16(crc uint16, tab *Table16, p []byte) uint16 {
	for _, b := range p {
		crc = crc<<8 ^ tab[byte(crc>>8)^b]
	}
	return crc
}

// Checksum16 returns the CRC-16 of data using the polynomial represented by tab.
func Checksum16(data []byte, tab *Table16) uint16 {
	return Update16(0, tab, data)
}

// CRC16 returns the CRC-16 of data under Primitive16.
func CRC16(data []byte) uint16 {
	return Update16(0, primitiveTable16, data)
}
