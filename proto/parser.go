// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proto

import (
	"regexp"
	"strconv"

	"github.com/go-lpc/ctlab/comm"
)

var msgRE = regexp.MustCompile(
	`(?im)^#(?P<main>\d+)\s*:\s*(?P<sub>\d+)\s*=\s*(?P<value>\d+)\s*(\[(?P<descr>.*)\])?\s*$`,
)

// Parse extracts all the messages of a received text.
// Lines that are not messages are ignored.
func Parse(text string) []comm.Message {
	var (
		matches = msgRE.FindAllStringSubmatch(text, -1)
		msgs    = make([]comm.Message, 0, len(matches))
		iMain   = msgRE.SubexpIndex("main")
		iSub    = msgRE.SubexpIndex("sub")
		iValue  = msgRE.SubexpIndex("value")
		iDescr  = msgRE.SubexpIndex("descr")
	)
	for _, m := range matches {
		mch, err := strconv.ParseUint(m[iMain], 10, 8)
		if err != nil {
			continue
		}
		sub, err := strconv.ParseUint(m[iSub], 10, 16)
		if err != nil {
			continue
		}
		msgs = append(msgs, comm.Message{
			Channel:     comm.Channel{Main: uint8(mch), Sub: uint16(sub)},
			Raw:         m[iValue],
			Description: m[iDescr],
		})
	}
	return msgs
}
