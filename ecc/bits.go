package ecc

// BytesToBits expands data into one element per bit, most significant first.
func BytesToBits(data []byte) []uint8 {
	out := make([]uint8, 0, len(data)*8)
	for _, b := range data {
		for shift := 7; shift >= 0; shift-- {
			out = append(out, b>>uint(shift)&1)
		}
	}
	return out
}

// BitsToBytes packs bits, most significant first. A trailing partial byte
// is padded with zero bits.
func BitsToBytes(bits []uint8) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b&1 != 0 {
			out[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return out
}

// FlipBit toggles the bit at pos, counted from the end of data starting at 1.
func FlipBit(data []byte, pos int) {
	idx := len(data) - 1 - (pos-1)/8
	data[idx] ^= 1 << uint((pos-1)%8)
}
