package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"lowercase", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false},
		{"uppercase", "0xFB6916095CA1DF60BB79CE92CE3EA74C37C5D359", "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", false},
		{"padded", "  0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb ", "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB", false},
		{"short", "0x1234", "", true},
		{"no prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00", "", true},
		{"not hex", "0xZZaeb6053f3e94c9b9a09f33669435e7ef1beaed", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAddress(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("0xABC", "0xabc"))
	assert.False(t, SameAddress("0xabc", "0xabd"))
}
