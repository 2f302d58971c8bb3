// Package parse decodes the RoboSense MSOP/DIFOP packet streams into
// Cartesian point clouds.
//
// A sensor emits two UDP streams: high-rate MSOP packets carrying the
// range/intensity measurements and low-rate DIFOP packets carrying device
// configuration and per-channel angle calibration. One Decoder instance
// consumes both for a single sensor session. The decoder is not safe for
// concurrent use; the receive layer is expected to serialise calls.
package parse

import (
	"time"

	"github.com/banshee-data/rslidar/internal/lidar"
)

// EchoMode is the sensor's configured return mode, reported on DIFOP.
// In dual mode each azimuth is measured twice, so MSOP blocks arrive in
// pairs sharing an azimuth and the angular rate must be measured over
// two-block windows.
type EchoMode uint8

const (
	EchoStrongest EchoMode = iota
	EchoLast
	EchoDual
)

func (e EchoMode) String() string {
	switch e {
	case EchoStrongest:
		return "strongest"
	case EchoLast:
		return "last"
	case EchoDual:
		return "dual"
	}
	return "unknown"
}

// Config holds the per-instance decode settings. Distances are metres and
// are clamped to the model's hard limits at construction; angles are
// centi-degrees. A window with StartAngle > EndAngle wraps through zero;
// leaving both zero admits the full revolution.
type Config struct {
	MinDistance float64
	MaxDistance float64
	StartAngle  int
	EndAngle    int

	// UseLidarClock selects the sensor's own calendar clock for trigger
	// timestamps instead of the host clock.
	UseLidarClock bool

	// TriggerEnabled records the timestamp at which the first-block azimuth
	// crosses TriggerAngle, for external synchronisation.
	TriggerEnabled bool
	TriggerAngle   int
}

// Trigger is the most recent trigger-angle crossing.
type Trigger struct {
	Azimuth   int     // first-block azimuth observed at the crossing
	Timestamp float64 // epoch seconds, lidar or host clock per Config
}

// Decoder turns raw MSOP/DIFOP packet bytes into points. MSOP packets are
// decodable from the first packet: until calibration arrives on DIFOP the
// angle tables are zero and output is geometrically usable but
// uncalibrated. Calibration loads at most once per instance.
type Decoder struct {
	model Model
	cfg   Config

	echoMode     EchoMode
	rpm          uint16
	pktsPerFrame uint32
	temperature  float32

	vertAngles  []float32 // centi-degrees, scaled per model
	horiAngles  []float32
	difopLoaded bool

	angleFlag bool // start <= end: the azimuth window is a plain interval

	lastTrigger *Trigger
	prevAzimuth int

	now func() time.Time // host clock, swappable in tests
}

// NewDecoder constructs a decoder for one sensor session. Out-of-range
// distance limits are clamped to the model's hard bounds the same way the
// sensor's own SDK does: an oversized (or unset) max falls to the cap, and
// a min below the floor or above max falls to the floor.
func NewDecoder(model Model, cfg Config) *Decoder {
	if cfg.MaxDistance <= 0 || cfg.MaxDistance > model.MaxDistanceCap {
		cfg.MaxDistance = model.MaxDistanceCap
	}
	if cfg.MinDistance < model.MinDistanceFloor || cfg.MinDistance > cfg.MaxDistance {
		cfg.MinDistance = model.MinDistanceFloor
	}
	if cfg.StartAngle == 0 && cfg.EndAngle == 0 {
		// Zero value means no azimuth restriction; 36000 keeps the plain
		// interval test true for every wrapped index.
		cfg.EndAngle = rotationUnits
	} else {
		cfg.StartAngle = wrapAngle(cfg.StartAngle)
		cfg.EndAngle = wrapAngle(cfg.EndAngle)
	}

	return &Decoder{
		model:       model,
		cfg:         cfg,
		echoMode:    EchoStrongest,
		vertAngles:  make([]float32, model.ChannelsPerBlock),
		horiAngles:  make([]float32, model.ChannelsPerBlock),
		angleFlag:   cfg.StartAngle <= cfg.EndAngle,
		prevAzimuth: -1,
		now:         time.Now,
	}
}

// Model returns the sensor model this decoder was built for.
func (d *Decoder) Model() Model { return d.model }

// Config returns the effective (clamped) configuration.
func (d *Decoder) Config() Config { return d.cfg }

// EchoMode returns the current return mode (strongest until DIFOP says otherwise).
func (d *Decoder) EchoMode() EchoMode { return d.echoMode }

// RPM returns the spin rate from the last DIFOP, 0 before one arrives.
func (d *Decoder) RPM() uint16 { return d.rpm }

// PktsPerFrame returns the expected MSOP packets per revolution, derived
// from spin rate and echo mode on DIFOP ingest.
func (d *Decoder) PktsPerFrame() uint32 { return d.pktsPerFrame }

// Temperature returns the sensor temperature from the last MSOP, degrees C.
func (d *Decoder) Temperature() float32 { return d.temperature }

// DifopLoaded reports whether angle calibration has been ingested. The
// transition false -> true happens at most once per instance.
func (d *Decoder) DifopLoaded() bool { return d.difopLoaded }

// LastTrigger returns the most recent trigger crossing, nil if none yet.
func (d *Decoder) LastTrigger() *Trigger { return d.lastTrigger }

// DecodeMSOP decodes one measurement packet, appending its points to buf
// and returning the extended slice, the vertical resolution (channels per
// block) and the first block's azimuth in centi-degrees.
//
// A fully valid packet appends exactly ChannelsPerBlock x BlocksPerPacket
// points; a block whose magic does not match truncates the packet there,
// keeping the points already produced. Points failing the distance or
// azimuth window are appended as sentinels (NaN coordinates) so that block
// stride is preserved within the decoded prefix.
func (d *Decoder) DecodeMSOP(pkt []byte, buf []lidar.Point) ([]lidar.Point, int, int, error) {
	height := d.model.ChannelsPerBlock
	v, err := newMsopView(d.model, pkt)
	if err != nil {
		return buf, height, 0, err
	}

	d.temperature = decodeTemperature(v.tempRaw())
	firstAzimuth := v.blockAzimuth(0)
	if d.cfg.TriggerEnabled {
		ts := float64(d.now().UnixNano()) / 1e9
		if d.cfg.UseLidarClock {
			ts = LidarTime(pkt)
		}
		d.checkTriggerAngle(firstAzimuth, ts)
	}

	tbl := trig()
	stride := 1
	if d.echoMode == EchoDual {
		stride = 2
	}

	out := buf
	for blk := 0; blk < d.model.BlocksPerPacket; blk++ {
		if !v.blockValid(d.model, blk) {
			break
		}
		curAzi := v.blockAzimuth(blk)

		// Angular step to the neighbouring block at the echo-mode stride,
		// positive even across the 360 degree wrap. Tail blocks have no
		// forward neighbour and difference backwards instead.
		var aziDiff float64
		if blk < d.model.BlocksPerPacket-stride {
			aziDiff = float64((rotationUnits + v.blockAzimuth(blk+stride) - curAzi) % rotationUnits)
		} else {
			aziDiff = float64((rotationUnits + curAzi - v.blockAzimuth(blk-stride)) % rotationUnits)
		}

		for ch := 0; ch < d.model.ChannelsPerBlock; ch++ {
			// Channels fire in two simultaneous groups of 16; the firing
			// fraction within the block interpolates the azimuth. Kept as
			// float until the final wrap.
			aziChannel := float64(curAzi) +
				aziDiff*d.model.ChannelTOffset*float64(ch%16)/d.model.FiringDuration
			aziFinal := wrapAngle(int(aziChannel + float64(d.horiAngles[ch])))
			angleHoriz := wrapAngle(int(aziChannel))
			angleVert := wrapAngle(int(d.vertAngles[ch]))

			raw, intensity := v.channel(blk, ch)
			distance := float64(raw) * DistanceResolution

			var p lidar.Point
			if d.admit(distance, aziFinal) {
				// Main rotation uses the calibrated azimuth; the fixed Rx
				// translation of the optical centre rotates with the
				// pre-calibration azimuth.
				p.X = distance*tbl.cos[angleVert]*tbl.cos[aziFinal] + d.model.Rx*tbl.cos[angleHoriz]
				p.Y = -distance*tbl.cos[angleVert]*tbl.sin[aziFinal] - d.model.Rx*tbl.sin[angleHoriz]
				p.Z = distance*tbl.sin[angleVert] + d.model.Rz
				p.Intensity = float64(intensity)
				p.Ring = d.ring(ch)
			} else {
				p.X = nan()
				p.Y = nan()
				p.Z = nan()
				p.Intensity = d.model.SentinelIntensity
				p.Ring = -1
			}
			out = append(out, p)
		}
	}
	return out, height, firstAzimuth, nil
}

// DecodeDIFOP ingests one device-info packet: echo mode, spin rate and
// frame accounting always; angle calibration once, the first time the
// embedded calibration block looks populated.
func (d *Decoder) DecodeDIFOP(pkt []byte) error {
	v, err := newDifopView(d.model, pkt)
	if err != nil {
		return err
	}

	switch v.returnMode() {
	case 0x00:
		d.echoMode = EchoDual
	case 0x01:
		d.echoMode = EchoStrongest
	case 0x02:
		d.echoMode = EchoLast
	}

	if rpm := v.rpm(); rpm > 0 {
		d.rpm = rpm
		k := 1
		if d.echoMode == EchoDual {
			k = 2
		}
		total := k * d.model.PktRate * 60
		d.pktsPerFrame = uint32((total + int(rpm) - 1) / int(rpm))
	}

	if !d.difopLoaded {
		pitch := v.pitchCali()
		if !caliBlockEmpty(pitch) {
			yaw := v.yawCali()
			negV, negH := 1, 1
			for i := 0; i < d.model.ChannelsPerBlock; i++ {
				g := i * caliBytesPerChannel
				d.vertAngles[i] = float32(caliValue(pitch[g:g+3], &negV)) * d.model.CaliScale
				d.horiAngles[i] = float32(caliValue(yaw[g:g+3], &negH)) * d.model.CaliScale
			}
			d.difopLoaded = true
		}
	}
	return nil
}

// admit is the filter gate: inclusive distance window plus the configured
// azimuth window, which wraps through zero when StartAngle > EndAngle.
func (d *Decoder) admit(distance float64, azimuth int) bool {
	if distance < d.cfg.MinDistance || distance > d.cfg.MaxDistance {
		return false
	}
	if d.angleFlag {
		return azimuth >= d.cfg.StartAngle && azimuth <= d.cfg.EndAngle
	}
	return azimuth >= d.cfg.StartAngle || azimuth <= d.cfg.EndAngle
}

func (d *Decoder) ring(ch int) int {
	if d.model.RingTable == nil {
		return -1
	}
	return d.model.RingTable[ch]
}

// checkTriggerAngle records a crossing of the configured trigger angle by
// successive first-block azimuths, handling the wrap past zero.
func (d *Decoder) checkTriggerAngle(azimuth int, ts float64) {
	prev := d.prevAzimuth
	d.prevAzimuth = azimuth
	if prev < 0 || prev == azimuth {
		return
	}
	target := wrapAngle(d.cfg.TriggerAngle)
	var crossed bool
	if azimuth < prev { // wrapped past zero this packet
		crossed = target > prev || target <= azimuth
	} else {
		crossed = prev < target && target <= azimuth
	}
	if crossed {
		d.lastTrigger = &Trigger{Azimuth: azimuth, Timestamp: ts}
	}
}

// decodeTemperature maps the raw MSOP temperature word to degrees Celsius:
// bit 15 is the sign, bits 14..8 and 7..3 form a 12-bit magnitude in
// 1/16 degree steps.
func decodeTemperature(raw uint16) float32 {
	msb := float32((raw >> 8) & 0x7F)
	lsb := float32((raw & 0xFF) >> 3)
	t := (msb*32 + lsb) * 0.0625
	if raw&0x8000 != 0 {
		t = -t
	}
	return t
}
