package gps

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validRMC = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	voidRMC  = "$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*7D"
	gga      = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
)

func TestScanFixSkipsNoise(t *testing.T) {
	input := strings.Join([]string{
		"",
		"garbage",
		"$GPRMC,1235",
		gga,
		validRMC,
	}, "\r\n") + "\r\n"

	fix, err := ScanFix(strings.NewReader(input), 20)
	require.NoError(t, err)
	assert.True(t, fix.Valid())
	assert.InDelta(t, 48.1173, fix.Latitude, 1e-4)
	assert.InDelta(t, 11.516667, fix.Longitude, 1e-4)
	assert.InDelta(t, 22.4, fix.SpeedKnots, 1e-9)
	assert.Equal(t, "A", fix.Validity)
}

func TestScanFixIgnoresVoidFix(t *testing.T) {
	_, err := ScanFix(strings.NewReader(voidRMC+"\n"), 20)
	assert.ErrorIs(t, err, ErrNoFix)
}

func TestScanFixLineLimit(t *testing.T) {
	input := strings.Repeat(gga+"\n", 5) + validRMC + "\n"
	_, err := ScanFix(strings.NewReader(input), 5)
	assert.ErrorIs(t, err, ErrNoFix)

	fix, err := ScanFix(strings.NewReader(input), 6)
	require.NoError(t, err)
	assert.True(t, fix.Valid())
}

func TestScanFixWithoutTrailingNewline(t *testing.T) {
	fix, err := ScanFix(strings.NewReader(validRMC), 1)
	require.NoError(t, err)
	assert.True(t, fix.Valid())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("port gone") }

func TestScanFixReadError(t *testing.T) {
	_, err := ScanFix(failingReader{}, 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoFix)
}

func TestFixJSON(t *testing.T) {
	raw, err := json.Marshal(Fix{Latitude: 1.5, Longitude: -2.25, Validity: "A"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lat":1.5`)
	assert.Contains(t, string(raw), `"lon":-2.25`)
}
