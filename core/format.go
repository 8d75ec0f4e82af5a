package core

// This file centralizes constants related to on-medium and export formats.

// --- Magic Numbers ---
const (
	// SnapshotMagicNumber identifies a medium image snapshot stream.
	SnapshotMagicNumber uint32 = 0x5341564E // "NVAS"
	// SnapshotFormatVersion is bumped whenever the manifest layout changes.
	SnapshotFormatVersion uint8 = 1
)

// --- File Names & Suffixes ---
const (
	// SnapshotFileSuffix is appended to snapshot files written by the CLI.
	SnapshotFileSuffix = ".nvsnap"
	// LockFileSuffix is appended to the medium path for the advisory lock.
	LockFileSuffix = ".lock"
)
