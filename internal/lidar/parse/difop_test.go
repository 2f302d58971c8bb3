package parse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Spec scenario S4: dual return at 600 rpm doubles the per-frame packet
// budget.
func TestDifopUpdatesEchoModeAndFrameAccounting(t *testing.T) {
	d := NewDecoder(RS32, Config{})
	assert.Equal(t, EchoStrongest, d.EchoMode(), "initial echo mode")

	err := d.DecodeDIFOP(buildDIFOP(RS32, difopOpts{returnMode: 0x00, rpm: 600}))
	require.NoError(t, err)
	assert.Equal(t, EchoDual, d.EchoMode())
	assert.Equal(t, uint16(600), d.RPM())
	assert.Equal(t, uint32(300), d.PktsPerFrame(), "ceil(2*1500*60/600)")

	err = d.DecodeDIFOP(buildDIFOP(RS32, difopOpts{returnMode: 0x02, rpm: 1200}))
	require.NoError(t, err)
	assert.Equal(t, EchoLast, d.EchoMode())
	assert.Equal(t, uint32(75), d.PktsPerFrame(), "ceil(1500*60/1200)")
}

func TestDifopPktsPerFrameRoundsUp(t *testing.T) {
	d := NewDecoder(RS32, Config{})
	err := d.DecodeDIFOP(buildDIFOP(RS32, difopOpts{returnMode: 0x01, rpm: 700}))
	require.NoError(t, err)
	// 1500*60/700 = 128.57..., frame accounting rounds up.
	assert.Equal(t, uint32(129), d.PktsPerFrame())
}

func TestDifopUnknownReturnModeKeepsCurrent(t *testing.T) {
	d := NewDecoder(RS32, Config{})
	require.NoError(t, d.DecodeDIFOP(buildDIFOP(RS32, difopOpts{returnMode: 0x00, rpm: 600})))
	require.Equal(t, EchoDual, d.EchoMode())

	require.NoError(t, d.DecodeDIFOP(buildDIFOP(RS32, difopOpts{returnMode: 0x7F, rpm: 600})))
	assert.Equal(t, EchoDual, d.EchoMode(), "unknown return_mode byte is ignored")
}

func TestDifopZeroRPMKeepsFrameAccounting(t *testing.T) {
	d := NewDecoder(RS32, Config{})
	require.NoError(t, d.DecodeDIFOP(buildDIFOP(RS32, difopOpts{returnMode: 0x01, rpm: 600})))
	before := d.PktsPerFrame()

	require.NoError(t, d.DecodeDIFOP(buildDIFOP(RS32, difopOpts{returnMode: 0x01, rpm: 0})))
	assert.Equal(t, before, d.PktsPerFrame(), "rpm 0 must not divide")
	assert.Equal(t, uint16(600), d.RPM())
}

// Spec scenario S5: an all-0xFF calibration region is the factory-empty
// sentinel and must not load.
func TestDifopEmptyCalibrationStaysUnloaded(t *testing.T) {
	d := NewDecoder(RS32, Config{})
	pkt := buildDIFOP(RS32, difopOpts{returnMode: 0x01, rpm: 600})
	for i := difopPitchCaliOffset; i < difopPitchCaliOffset+96; i++ {
		pkt[i] = 0xFF
	}
	require.NoError(t, d.DecodeDIFOP(pkt))
	assert.False(t, d.DifopLoaded())
	assert.Equal(t, make([]float32, 32), d.vertAngles, "calibration unchanged")
}

func TestDifopCalibrationLoadsOnce(t *testing.T) {
	d := NewDecoder(RSBP, Config{})
	first := difopOpts{
		returnMode: 0x01,
		rpm:        600,
		pitch:      flatCali(RSBP, 0, 300),
		yaw:        flatCali(RSBP, 1, 40),
	}
	require.NoError(t, d.DecodeDIFOP(buildDIFOP(RSBP, first)))
	require.True(t, d.DifopLoaded())

	wantVert := make([]float32, 32)
	wantHori := make([]float32, 32)
	for i := range wantVert {
		wantVert[i] = 300
		wantHori[i] = -40
	}
	if diff := cmp.Diff(wantVert, d.vertAngles); diff != "" {
		t.Errorf("vertical calibration mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantHori, d.horiAngles); diff != "" {
		t.Errorf("horizontal calibration mismatch (-want +got):\n%s", diff)
	}

	// A later DIFOP with different tables is ignored: loading is one-shot.
	second := first
	second.pitch = flatCali(RSBP, 0, 999)
	require.NoError(t, d.DecodeDIFOP(buildDIFOP(RSBP, second)))
	assert.True(t, d.DifopLoaded())
	assert.Equal(t, float32(300), d.vertAngles[0])
}

func TestDifopCalibrationScalePerModel(t *testing.T) {
	// The same wire value lands scaled on RS32 and raw on RSBP.
	for _, c := range []struct {
		model Model
		want  float32
	}{
		{RS32, 30},
		{RSBP, 300},
	} {
		d := NewDecoder(c.model, Config{})
		require.NoError(t, d.DecodeDIFOP(buildDIFOP(c.model, difopOpts{
			returnMode: 0x01,
			rpm:        600,
			pitch:      flatCali(c.model, 0, 300),
			yaw:        flatCali(c.model, 0, 300),
		})))
		assert.Equal(t, c.want, d.vertAngles[0], c.model.Name)
		assert.Equal(t, c.want, d.horiAngles[0], c.model.Name)
	}
}

func TestDifopWrongMagicLeavesStateUnchanged(t *testing.T) {
	d := NewDecoder(RS32, Config{})
	err := d.DecodeDIFOP(buildDIFOP(RS32, difopOpts{returnMode: 0x00, rpm: 600, badMagic: true}))
	require.ErrorIs(t, err, ErrWrongPacketHeader)
	assert.Equal(t, EchoStrongest, d.EchoMode())
	assert.Equal(t, uint16(0), d.RPM())
	assert.False(t, d.DifopLoaded())
}
