package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSignal(t *testing.T) {
	valid := []SignalProcessingData{
		{PH: 6.5, GasLevel: 50, StorageTime: 24, Temperature: ptr(4.0)},
		{PH: 0, GasLevel: 0, StorageTime: 0},
		{PH: 14, GasLevel: 500, StorageTime: 168, Temperature: ptr(-20.0)},
		{PH: 7, GasLevel: 10, StorageTime: 1, Temperature: ptr(30.0)},
	}
	for _, s := range valid {
		assert.NoError(t, ValidateSignal(s), "%+v", s)
	}
}

func TestValidateSignalRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		signal SignalProcessingData
		want   string
	}{
		{"ph too high", SignalProcessingData{PH: 15}, "ph must be at most 14"},
		{"ph negative", SignalProcessingData{PH: -1}, "ph must be at least 0"},
		{"gas negative", SignalProcessingData{PH: 6, GasLevel: -5}, "gasLevel must be at least 0"},
		{"gas too high", SignalProcessingData{PH: 6, GasLevel: 501}, "gasLevel must be at most 500"},
		{"storage too long", SignalProcessingData{PH: 6, StorageTime: 200}, "storageTime must be at most 168"},
		{"too hot", SignalProcessingData{PH: 6, Temperature: ptr(31.0)}, "temperature must be at most 30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignal(tt.signal)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSignal)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
