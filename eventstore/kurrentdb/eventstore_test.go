package kurrentdb

import (
	"testing"

	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

func TestMapRevision(t *testing.T) {
	cases := []struct {
		name string
		in   rd.StreamState
		want kurrentdb.StreamState
	}{
		{"any", rd.Any{}, kurrentdb.Any{}},
		{"no stream", rd.NoStream{}, kurrentdb.NoStream{}},
		{"stream exists", rd.StreamExists{}, kurrentdb.StreamExists{}},
		// Revision counts events, so 0 means "no events yet" and must map
		// to NoStream instead of underflowing to a huge zero-based revision.
		{"revision zero", rd.Revision(0), kurrentdb.NoStream{}},
		{"revision one", rd.Revision(1), kurrentdb.StreamRevision{Value: 0}},
		{"revision many", rd.Revision(12), kurrentdb.StreamRevision{Value: 11}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapRevision(tc.in); got != tc.want {
				t.Fatalf("mapRevision(%#v) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}
