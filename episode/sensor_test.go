package episode

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorLength(t *testing.T) {
	tests := []struct {
		width, height, scale int
		want                 int
	}{
		{1300, 1000, 25, 6240},
		{1300, 1000, 50, 26 * 20 * 3},
		{40, 30, 10, 36},
		{45, 30, 10, 36},
	}
	for _, tt := range tests {
		s := NewSensor(tt.width, tt.height, tt.scale)
		assert.Equal(t, tt.want, s.Len())

		v, err := s.Vector(image.NewRGBA(image.Rect(0, 0, tt.width, tt.height)))
		require.NoError(t, err)
		assert.Len(t, v, tt.want)
	}
}

func TestSensorChannelOrder(t *testing.T) {
	s := NewSensor(testWidth, testHeight, 10)
	v, err := s.Vector(frameWith())
	require.NoError(t, err)
	// background is R=180 G=60 B=60
	assert.Equal(t, []float64{60, 60, 180}, v[:3])
}

func TestSensorRejectsWrongSize(t *testing.T) {
	s := NewSensor(testWidth, testHeight, 10)
	_, err := s.Vector(image.NewRGBA(image.Rect(0, 0, testWidth, testHeight+1)))
	require.ErrorIs(t, err, ErrFrameSize)
}
