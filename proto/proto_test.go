// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proto

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/go-lpc/ctlab/comm"
)

func TestBuilder(t *testing.T) {
	fixed := func(string) byte { return 0x08 }
	for _, tc := range []struct {
		name string
		b    *Builder
		f    func(b *Builder) string
		want string
	}{
		{
			name: "set-checksum",
			b:    NewBuilder(WithChecksum(fixed)),
			f:    func(b *Builder) string { return b.Set(comm.Channel{Main: 1, Sub: 20}, "1") },
			want: "1:20=1$08",
		},
		{
			name: "set-plain",
			b:    NewBuilder(),
			f:    func(b *Builder) string { return b.Set(comm.Channel{Main: 7, Sub: 3}, "42") },
			want: "7:3=42",
		},
		{
			name: "set-default-channel",
			b:    NewBuilder(),
			f: func(b *Builder) string {
				return b.Set(comm.Channel{Main: comm.DefaultChannel, Sub: 20}, "1")
			},
			want: "20=1",
		},
		{
			name: "set-broadcast",
			b:    NewBuilder(),
			f: func(b *Builder) string {
				return b.Set(comm.Channel{Main: comm.BroadcastChannel, Sub: 20}, "1")
			},
			want: "*:20=1",
		},
		{
			name: "query",
			b:    NewBuilder(),
			f:    func(b *Builder) string { return b.Query(comm.Channel{Main: 1, Sub: 255}) },
			want: "1:255?",
		},
		{
			name: "query-default-channel",
			b:    NewBuilder(),
			f: func(b *Builder) string {
				return b.Query(comm.Channel{Main: comm.DefaultChannel, Sub: 254})
			},
			want: "254?",
		},
		{
			name: "query-broadcast-ack-checksum",
			b:    NewBuilder(WithAcknowledge(), WithChecksum(fixed)),
			f: func(b *Builder) string {
				return b.Query(comm.Channel{Main: comm.BroadcastChannel, Sub: 5})
			},
			want: "*:5?!$08",
		},
		{
			name: "set-ack",
			b:    NewBuilder(WithAcknowledge()),
			f:    func(b *Builder) string { return b.Set(comm.Channel{Main: 2, Sub: 1}, "0") },
			want: "2:1=0!",
		},
		{
			name: "set-xor",
			b:    DefaultBuilder(),
			f:    func(b *Builder) string { return b.Set(comm.Channel{Main: 1, Sub: 20}, "1") },
			want: fmt.Sprintf("1:20=1$%02X", '1'^':'^'2'^'0'^'='^'1'),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.f(tc.b)
			if got != tc.want {
				t.Fatalf("invalid command string: got=%q, want=%q", got, tc.want)
			}
		})
	}
}

func TestTrimChecksum(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"1:20=1$08", "1:20=1"},
		{"1:20=1", "1:20=1"},
		{"1:20?!$5A", "1:20?!"},
		{"$00", ""},
	} {
		if got := TrimChecksum(tc.in); got != tc.want {
			t.Fatalf("invalid trimmed string for %q: got=%q, want=%q", tc.in, got, tc.want)
		}
	}
}

func TestXOR(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want byte
	}{
		{"", 0},
		{"A", 'A'},
		{"AA", 0},
		{"1:20=1", '1' ^ ':' ^ '2' ^ '0' ^ '=' ^ '1'},
	} {
		if got := XOR(tc.in); got != tc.want {
			t.Fatalf("invalid checksum for %q: got=0x%02x, want=0x%02x", tc.in, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		want []comm.Message
	}{
		{
			name: "empty",
			text: "",
			want: []comm.Message{},
		},
		{
			name: "single",
			text: "#1:20=42",
			want: []comm.Message{
				{Channel: comm.Channel{Main: 1, Sub: 20}, Raw: "42"},
			},
		},
		{
			name: "description",
			text: "#7:255=0 [OK]\r\n",
			want: []comm.Message{
				{Channel: comm.Channel{Main: 7, Sub: 255}, Raw: "0", Description: "OK"},
			},
		},
		{
			name: "multi-line",
			text: "#1:4=3\r\n#1 : 5 = 1234 [cnt]\r\ngarbage\r\n#300:1=1\r\n#1:5=x\r\n",
			want: []comm.Message{
				{Channel: comm.Channel{Main: 1, Sub: 4}, Raw: "3"},
				{Channel: comm.Channel{Main: 1, Sub: 5}, Raw: "1234", Description: "cnt"},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid messages:\ngot= %#v\nwant=%#v", got, tc.want)
			}
		})
	}
}
