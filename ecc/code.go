package ecc

import (
	"fmt"
	"math/bits"

	"github.com/INLOpen/nvattr/core"
)

// MaxCheckBits bounds the degree of a generator polynomial. The transition
// and syndrome tables hold 3*2^P states.
const MaxCheckBits = 24

// Code holds the transition and syndrome tables derived from one generator
// polynomial. A Code is read-only after construction and safe for concurrent use.
type Code struct {
	poly  uint32
	power int
	size  uint32

	// next[2*r+c] is the state reached from r after consuming bit c.
	next []uint32
	// syndrome[s] is the 1-based position, counted from the end of the
	// codeword, of the single flipped bit that leaves residue s.
	// syndrome[0] is unused.
	syndrome []uint32
}

// NewCode builds the tables for the generator polynomial poly, whose highest
// set bit is x^P.
func NewCode(poly uint32) (*Code, error) {
	power := bits.Len32(poly) - 1
	if power < 1 || power > MaxCheckBits {
		return nil, fmt.Errorf("%w: 0x%X has degree %d, want 1..%d", core.ErrPolynomialInvalid, poly, power, MaxCheckBits)
	}
	size := uint32(1) << power

	c := &Code{
		poly:     poly,
		power:    power,
		size:     size,
		next:     make([]uint32, 2*size),
		syndrome: make([]uint32, size),
	}

	for r := uint32(0); r < size; r++ {
		for bit := uint32(0); bit < 2; bit++ {
			t := r*2 + bit
			if t >= size {
				t ^= poly
			}
			c.next[2*r+bit] = t
		}
	}

	// Advance the register with zero input from state 1: step d is the
	// residue of a lone bit d places before the end of the codeword.
	t := uint32(1)
	for pos := uint32(1); pos < size; pos++ {
		if t == 0 || c.syndrome[t] != 0 {
			return nil, fmt.Errorf("%w: 0x%X repeats residue 0x%X at bit %d", core.ErrPolynomialInvalid, poly, t, pos)
		}
		c.syndrome[t] = pos
		t <<= 1
		if t >= size {
			t ^= poly
		}
	}
	return c, nil
}

// Polynomial returns the generator polynomial, including its x^P term.
func (c *Code) Polynomial() uint32 { return c.poly }

// CheckBits returns P, the number of check bits appended to a message.
func (c *Code) CheckBits() int { return c.power }

// MaxCodewordBits is the longest codeword whose single-bit errors can be
// located: 2^P - 1 bits, message and check bits together.
func (c *Code) MaxCodewordBits() int { return int(c.size) - 1 }

// Next returns the state reached from state r after consuming bit.
func (c *Code) Next(r uint32, bit uint8) uint32 {
	return c.next[2*r+uint32(bit&1)]
}

// Position returns the position, counted from the end and starting at 1,
// of the bit whose flip leaves the given residue.
func (c *Code) Position(residue uint32) (int, bool) {
	if residue == 0 || residue >= c.size {
		return 0, false
	}
	return int(c.syndrome[residue]), true
}

// Residue folds bits through the state machine starting from state zero.
func (c *Code) Residue(bits []uint8) uint32 {
	var r uint32
	for _, b := range bits {
		r = c.next[2*r+uint32(b&1)]
	}
	return r
}

// ResidueBytes folds every bit of data, most significant bit first.
func (c *Code) ResidueBytes(data []byte) uint32 {
	var r uint32
	for _, b := range data {
		for shift := 7; shift >= 0; shift-- {
			r = c.next[2*r+uint32(b>>uint(shift)&1)]
		}
	}
	return r
}

// Encode appends P check bits to msg. The check bits are the binary form,
// most significant bit first, of the state reached after folding msg
// followed by P zero bits. It returns the codeword and that state.
func (c *Code) Encode(msg []uint8) ([]uint8, uint32, error) {
	if err := validateBits(msg); err != nil {
		return nil, 0, err
	}
	if len(msg)+c.power > c.MaxCodewordBits() {
		return nil, 0, fmt.Errorf("ecc: %d message bits exceed the %d-bit codeword of 0x%X", len(msg), c.MaxCodewordBits(), c.poly)
	}
	state := c.Residue(msg)
	for i := 0; i < c.power; i++ {
		state = c.next[2*state]
	}

	codeword := make([]uint8, len(msg), len(msg)+c.power)
	copy(codeword, msg)
	for i := c.power - 1; i >= 0; i-- {
		codeword = append(codeword, uint8(state>>uint(i)&1))
	}
	return codeword, state, nil
}

// DecodeAndCorrect checks a received codeword. It returns a copy of the
// codeword with at most one bit flipped back, and the position of that bit
// counted from the end (0 when the codeword was clean). A residue pointing
// outside the codeword is reported as an integrity error.
func (c *Code) DecodeAndCorrect(received []uint8) ([]uint8, int, error) {
	if err := validateBits(received); err != nil {
		return nil, 0, err
	}
	if len(received) > c.MaxCodewordBits() {
		return nil, 0, fmt.Errorf("ecc: %d-bit codeword exceeds the %d bits 0x%X can correct", len(received), c.MaxCodewordBits(), c.poly)
	}
	corrected := append([]uint8(nil), received...)
	residue := c.Residue(received)
	if residue == 0 {
		return corrected, 0, nil
	}
	pos, ok := c.Position(residue)
	if !ok || pos > len(received) {
		return nil, 0, fmt.Errorf("%w: residue 0x%X does not locate a bit in a %d-bit codeword", core.ErrIntegrity, residue, len(received))
	}
	corrected[len(received)-pos] ^= 1
	return corrected, pos, nil
}

// CorrectBytes flips back, in place, the single bit of data whose flip
// explains its residue. Bit 1 is the least significant bit of the last byte.
// It returns 0 when data is already a codeword.
func (c *Code) CorrectBytes(data []byte) (int, error) {
	n := len(data) * 8
	if n > c.MaxCodewordBits() {
		return 0, fmt.Errorf("ecc: %d-bit codeword exceeds the %d bits 0x%X can correct", n, c.MaxCodewordBits(), c.poly)
	}
	residue := c.ResidueBytes(data)
	if residue == 0 {
		return 0, nil
	}
	pos, ok := c.Position(residue)
	if !ok || pos > n {
		return 0, fmt.Errorf("%w: residue 0x%X does not locate a bit in a %d-bit codeword", core.ErrIntegrity, residue, n)
	}
	FlipBit(data, pos)
	return pos, nil
}

func validateBits(bits []uint8) error {
	for i, b := range bits {
		if b > 1 {
			return fmt.Errorf("ecc: element %d is %d, want 0 or 1", i, b)
		}
	}
	return nil
}
