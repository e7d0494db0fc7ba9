// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package siggen

import "math"

// AMInfo describes the amplitude modulation of a carrier.
type AMInfo struct {
	RelativeDepth float64 // modulator amplitude relative to the carrier headroom
}

// Overmodulated reports whether the modulation exceeds the carrier headroom.
func (info AMInfo) Overmodulated() bool { return info.RelativeDepth > 1 }

// FMInfo describes the frequency modulation of a carrier.
type FMInfo struct {
	Depth         float64 // frequency deviation, in Hz
	RelativeDepth float64 // deviation relative to the carrier headroom
}

// Overmodulated reports whether the modulation exceeds the carrier headroom.
func (info FMInfo) Overmodulated() bool { return info.RelativeDepth > 1 }

func amInfo(carrier, mod *DDS) AMInfo {
	if mod == nil || mod.amp == 0 {
		return AMInfo{}
	}
	room := headroom(float64(carrier.amp), MaxAmplitude)
	return AMInfo{
		RelativeDepth: math.Abs(float64(mod.amp) / room),
	}
}

func fmInfo(carrier, mod *DDS) FMInfo {
	if mod == nil {
		return FMInfo{}
	}
	depth := math.Abs(carrier.MaxFMDepth() * float64(mod.amp) / MaxAmplitude)
	if depth == 0 {
		return FMInfo{}
	}
	room := headroom(carrier.Frequency(), MaxFrequency)
	return FMInfo{
		Depth:         depth,
		RelativeDepth: depth / room,
	}
}

// headroom returns the distance of v to the nearest bound of [0, limit].
func headroom(v, limit float64) float64 {
	if v < limit/2 {
		return v
	}
	return limit - v
}
