// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctlab holds code to control c't Lab FPGA instruments
// (signal generator, universal counter and sample storage) over the
// c't Lab text protocol or a direct SPI link.
package ctlab // import "github.com/go-lpc/ctlab"

import (
	"fmt"
	"runtime/debug"
)

// Version reports the github.com/go-lpc/ctlab module version recorded in
// the running binary's build info, with its go.sum checksum.
// A replaced module reports the replacement path and version; a local
// directory replacement reports the required version suffixed with "*".
// Both values are empty when ctlab is the main module or the binary
// carries no build info.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-lpc/ctlab"
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
