package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()
	assert.NoError(t, l.Validate())
	assert.Equal(t, int64(1024), l.DirectorySize())
	assert.Equal(t, int64(1024), l.CursorOffset())
	assert.Equal(t, int64(1026), l.ValueStart())
	assert.Equal(t, int64(0xFFFF), l.ValueEnd(), "the cursor is 16 bit, so 0xFFFF is exclusive")
}

func TestLayout_SlotAddress(t *testing.T) {
	l := DefaultLayout()
	assert.Equal(t, int64(0), l.SlotAddress(0))
	assert.Equal(t, int64(336), l.SlotAddress(84))
	assert.Equal(t, int64(1020), l.SlotAddress(255))
}

func TestLayout_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		layout  Layout
		wantErr bool
	}{
		{"reference", DefaultLayout(), false},
		{"small medium", NewLayout(2048), false},
		{"smallest usable", NewLayout(1026 + 3), false},
		{"no value room", NewLayout(1026 + 2), true},
		{"too large", NewLayout(128 * 1024), true},
		{"zero slots", Layout{Slots: 0, Size: 4096}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.layout.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLayout_ValueEndSmallMedium(t *testing.T) {
	assert.Equal(t, int64(4096), NewLayout(4096).ValueEnd())
}
