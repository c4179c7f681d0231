package graph

import (
	"encoding/binary"
	"math"

	"github.com/chassisdb/chassis/internal/chassiserr"
)

// HeaderSize is the fixed Graph Header size (spec §3/§6): 64 bytes,
// cache-line aligned.
const HeaderSize = 64

var graphMagic = [8]byte{'C', 'H', 'G', 'R', 'A', 'P', 'H', 0x00}

// Metric tags the distance variant this file was built with (spec §9 open
// question, resolved by storing the choice in the Graph Header's reserved
// region — see encode/decode below).
type Metric uint8

const (
	MetricEuclideanSquared Metric = iota
	MetricEuclideanRooted
)

// ghHeader is the decoded Graph Header.
type ghHeader struct {
	version        uint32
	m              uint16
	m0             uint16
	maxLayers      uint8
	nodeCount      uint64
	entryPoint     uint64
	mL             float32
	efConstruction uint32
	efSearch       uint32
	metric         Metric
}

const CurrentVersion = uint32(1)

func encodeGraphHeader(dst []byte, h *ghHeader) {
	copy(dst[0:8], graphMagic[:])
	binary.NativeEndian.PutUint32(dst[8:12], h.version)
	binary.NativeEndian.PutUint16(dst[12:14], h.m)
	binary.NativeEndian.PutUint16(dst[14:16], h.m0)
	dst[16] = h.maxLayers
	for i := 17; i < 24; i++ {
		dst[i] = 0
	}
	binary.NativeEndian.PutUint64(dst[24:32], h.nodeCount)
	binary.NativeEndian.PutUint64(dst[32:40], h.entryPoint)
	binary.NativeEndian.PutUint32(dst[40:44], math.Float32bits(h.mL))
	binary.NativeEndian.PutUint32(dst[44:48], h.efConstruction)
	for i := 48; i < HeaderSize; i++ {
		dst[i] = 0
	}
	binary.NativeEndian.PutUint32(dst[48:52], h.efSearch)
	dst[52] = byte(h.metric)
}

func decodeGraphHeader(src []byte) (*ghHeader, error) {
	if len(src) < HeaderSize {
		return nil, chassiserr.New(chassiserr.CorruptHeader, "graph.decodeGraphHeader",
			"region shorter than graph header", nil, uint64(len(src)))
	}
	var magic [8]byte
	copy(magic[:], src[0:8])
	if magic != graphMagic {
		return nil, chassiserr.New(chassiserr.CorruptHeader, "graph.decodeGraphHeader", "bad magic", nil)
	}
	version := binary.NativeEndian.Uint32(src[8:12])
	if version == 0 || version > CurrentVersion {
		return nil, chassiserr.New(chassiserr.CorruptHeader, "graph.decodeGraphHeader",
			"unsupported version", nil, uint64(version))
	}
	h := &ghHeader{
		version:        version,
		m:              binary.NativeEndian.Uint16(src[12:14]),
		m0:             binary.NativeEndian.Uint16(src[14:16]),
		maxLayers:      src[16],
		nodeCount:      binary.NativeEndian.Uint64(src[24:32]),
		entryPoint:     binary.NativeEndian.Uint64(src[32:40]),
		mL:             math.Float32frombits(binary.NativeEndian.Uint32(src[40:44])),
		efConstruction: binary.NativeEndian.Uint32(src[44:48]),
		efSearch:       binary.NativeEndian.Uint32(src[48:52]),
		metric:         Metric(src[52]),
	}
	return h, nil
}
