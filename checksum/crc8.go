package checksum

// ATM8 is the x^8+x^2+x+1 polynomial (CRC-8/SMBUS), used for directory records.
const ATM8 uint8 = 0x07

// Table8 is a 256-word table representing a CRC-8 polynomial.
type Table8 [256]uint8

var atmTable8 = MakeTable8(ATM8)

// MakeTable8 returns the Table8 for the given polynomial, high bit implicit.
func MakeTable8(poly uint8) *Table8 {
	t := new(Table8)
	for i := 0; i < 256; i++ {
		crc := uint8(i)
		for j := 0; j < 8; j++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Update8 returns the result of adding the bytes in p to the crc.
func Update8(crc uint8, tab *Table8, p []byte) uint8 {
	for _, b := range p {
		crc = tab[crc^b]
	}
	return crc
}

// Checksum8 returns the CRC-8 of data using the polynomial represented by tab.
func Checksum8(data []byte, tab *Table8) uint8 {
	return Update8(0, tab, data)
}

// CRC8 returns the CRC-8/SMBUS checksum of data.
func CRC8(data []byte) uint8 {
	return Update8(0, atmTable8, data)
}
