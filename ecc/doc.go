// Package ecc corrects single flipped bits in CRC-protected data.
//
// A generator polynomial G of degree P drives a bit-serial finite state
// machine: consuming bit c in state r moves to r*2+c, reduced by G whenever
// the result reaches 2^P. Folding a codeword (message followed by its P check
// bits) through the machine ends in state zero. When exactly one bit is
// flipped, the final state is x^d mod G, where d is the distance of the bit
// from the end of the codeword, and the syndrome table maps that state back
// to the bit position.
//
// The table is only unique when G is primitive; NewCode rejects polynomials
// that would map two positions to the same state.
//
// Only single-bit errors are corrected. Two flipped bits are always detected
// as damage, but the reported position is then meaningless and applying it
// produces a wrong "correction". Three or more flipped bits can land on
// another codeword and go undetected. Callers that need more must use a
// stronger code.
package ecc
