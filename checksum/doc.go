// Package checksum implements the table-driven CRC-8 and CRC-16 used to
// guard directory records and stored values.
//
// Both checksums are computed most significant bit first, with a zero
// initial value and no final xor. For CRC-16 that means a message followed by
// its big-endian checksum is divisible by the generator, so the residue of a
// damaged value identifies the flipped bit (see package ecc).
package checksum
