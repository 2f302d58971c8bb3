package parse

import (
	"encoding/binary"
)

// Synthetic packet builders shared by the decoder tests. Packets are built
// through the same offset constants the wire views read, so these tests
// exercise the decode logic; a wrong offset value would not make them fail.

type msopOpts struct {
	azimuths  []int // per-block azimuth, centi-degrees; one entry per block
	badMagic  bool  // corrupt the 8-byte packet magic
	badBlock  int   // corrupt this block's magic, -1 for none
	tempRaw   uint16
	timestamp [10]byte
}

func defaultMsopOpts() msopOpts {
	azi := make([]int, RS32.BlocksPerPacket)
	for i := range azi {
		azi[i] = wrapAngle(9000 + i*20) // 0.2 degree steps at 600 rpm
	}
	return msopOpts{azimuths: azi, badBlock: -1}
}

func buildMSOP(m Model, o msopOpts) []byte {
	pkt := make([]byte, PacketSize)
	copy(pkt, m.MsopMagic[:])
	if o.badMagic {
		pkt[0] ^= 0xFF
	}
	copy(pkt[msopTimestampOffset:], o.timestamp[:])
	binary.BigEndian.PutUint16(pkt[msopTempOffset:], o.tempRaw)
	for blk := 0; blk < m.BlocksPerPacket; blk++ {
		off := msopBlocksOffset + blk*msopBlockSize
		magic := m.BlockMagic
		if blk == o.badBlock {
			magic ^= 0xFFFF
		}
		binary.BigEndian.PutUint16(pkt[off:], magic)
		binary.BigEndian.PutUint16(pkt[off+blockAzimuthOffset:], uint16(o.azimuths[blk]))
	}
	return pkt
}

func setChannel(pkt []byte, blk, ch int, distance uint16, intensity uint8) {
	off := msopBlocksOffset + blk*msopBlockSize + blockChannelsOffset + ch*bytesPerChannel
	binary.BigEndian.PutUint16(pkt[off:], distance)
	pkt[off+2] = intensity
}

type difopOpts struct {
	returnMode byte
	rpm        uint16
	badMagic   bool

	// nil leaves the calibration region zeroed (the empty sentinel); use
	// flatCali to fill per-channel {sign, msb, lsb} triples.
	pitch [][3]byte
	yaw   [][3]byte
}

func buildDIFOP(m Model, o difopOpts) []byte {
	pkt := make([]byte, PacketSize)
	copy(pkt, m.DifopMagic[:])
	if o.badMagic {
		pkt[0] ^= 0xFF
	}
	binary.BigEndian.PutUint16(pkt[difopRPMOffset:], o.rpm)
	pkt[difopReturnModeOffset] = o.returnMode
	for i, g := range o.pitch {
		copy(pkt[difopPitchCaliOffset+i*3:], g[:])
	}
	for i, g := range o.yaw {
		copy(pkt[difopYawCaliOffset+i*3:], g[:])
	}
	return pkt
}

// flatCali builds a calibration table with the same value on every channel.
func flatCali(m Model, sign byte, value int) [][3]byte {
	groups := make([][3]byte, m.ChannelsPerBlock)
	for i := range groups {
		groups[i] = [3]byte{sign, byte(value >> 8), byte(value)}
	}
	return groups
}
