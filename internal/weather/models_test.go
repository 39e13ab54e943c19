package weather

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationValidate(t *testing.T) {
	tests := []struct {
		name    string
		loc     Location
		wantErr string
	}{
		{"origin", Location{}, ""},
		{"bounds", Location{Latitude: -90, Longitude: 360}, ""},
		{"latitude too high", Location{Latitude: 90.5}, "latitude"},
		{"longitude too low", Location{Longitude: -180.1}, "longitude"},
		{"nan latitude", Location{Latitude: math.NaN()}, "latitude"},
		{"nan longitude", Location{Longitude: math.NaN()}, "longitude"},
		{"infinite latitude", Location{Latitude: math.Inf(1)}, "latitude"},
		{"infinite longitude", Location{Longitude: math.Inf(-1)}, "longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
