package utcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackParseHeaderRoundTrip(t *testing.T) {
	h := Header{Src: 1234, Dst: 5678, Seq: 111, Ack: 222, Wnd: 1000, Ctl: FlagSYN | FlagACK}
	buf := buildSegment(h, []byte("payload"))
	require.Len(t, buf, HeaderLen+len("payload"))

	got, err := parseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h.Src, got.Src)
	require.Equal(t, h.Dst, got.Dst)
	require.Equal(t, h.Seq, got.Seq)
	require.Equal(t, h.Ack, got.Ack)
	require.Equal(t, h.Wnd, got.Wnd)
	require.Equal(t, h.Ctl, got.Ctl)
}

func TestParseHeaderRejectsShortDatagram(t *testing.T) {
	_, err := parseHeader(make([]byte, HeaderLen-1))
	require.Error(t, err)
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, BadMessage, uerr.Kind)
}

func TestParseHeaderRejectsUnknownControlBits(t *testing.T) {
	buf := make([]byte, HeaderLen)
	packHeader(buf, Header{Ctl: Flags(0xFF00)})
	_, err := parseHeader(buf)
	require.Error(t, err)
}

func TestFlagsString(t *testing.T) {
	require.Equal(t, "-", Flags(0).String())
	require.Equal(t, "SA", (FlagSYN | FlagACK).String())
	require.Equal(t, "SAFR", (FlagSYN | FlagACK | FlagFIN | FlagRST).String())
}

func TestSegmentPayloadLen(t *testing.T) {
	s := segment{Header: Header{}, payload: []byte("abc")}
	require.Equal(t, 3, s.payloadLen())
}
