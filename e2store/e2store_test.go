package e2store

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func hexb(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestEncode(t *testing.T) {
	for _, test := range []struct {
		name    string
		entries []Entry
		want    string
	}{
		{
			name:    "emptyEntry",
			entries: []Entry{{0xffff, nil}},
			want:    "ffff000000000000",
		},
		{
			name:    "beef",
			entries: []Entry{{42, hexb("beef")}},
			want:    "2a00020000000000beef",
		},
		{
			name: "twoEntries",
			entries: []Entry{
				{42, hexb("beef")},
				{9, hexb("abcdabcd")},
			},
			want: "2a00020000000000beef0900040000000000abcdabcd",
		},
	} {
		tt := test
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var (
				b = bytes.NewBuffer(nil)
				w = NewWriter(b)
			)
			for _, e := range tt.entries {
				_, err := w.Write(e.Type, e.Value)
				require.NoError(t, err)
			}
			require.Equal(t, hexb(tt.want), b.Bytes())

			r := NewReader(bytes.NewReader(b.Bytes()))
			for _, want := range tt.entries {
				have, err := r.Read()
				require.NoError(t, err)
				require.Equal(t, want.Type, have.Type)
				require.Equal(t, want.Value, have.Value)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	for i, tt := range []struct {
		have string
		err  error
	}{
		{ // basic valid decoding
			have: "ffff000000000000",
		},
		{ // basic invalid decoding
			have: "ffff000000000001",
			err:  fmt.Errorf("reserved bytes are non-zero"),
		},
		{ // no more entries to read, returns EOF
			have: "",
			err:  io.EOF,
		},
		{ // malformed type
			have: "bad0",
			err:  io.ErrUnexpectedEOF,
		},
		{ // malformed length
			have: "badbeef0",
			err:  io.ErrUnexpectedEOF,
		},
		{ // specified length longer than actual value
			have: "beef010000000000",
			err:  io.ErrUnexpectedEOF,
		},
	} {
		r := NewReader(bytes.NewReader(hexb(tt.have)))
		_, err := r.Read()
		if tt.err == nil {
			require.NoError(t, err, "test %d", i)
			continue
		}
		require.Error(t, err, "test %d", i)
		require.Equal(t, tt.err.Error(), err.Error(), "test %d", i)
	}
}

func TestReaderAtTypeMismatch(t *testing.T) {
	var (
		b = bytes.NewBuffer(nil)
		w = NewWriter(b)
	)
	_, err := w.Write(42, []byte("payload"))
	require.NoError(t, err)

	r := NewReader(bytes.NewReader(b.Bytes()))
	_, _, err = r.ReaderAt(43, 0)
	require.ErrorIs(t, err, ErrWrongType)

	sr, n, err := r.ReaderAt(42, 0)
	require.NoError(t, err)
	require.Equal(t, 8+len("payload"), n)
	got, err := io.ReadAll(sr)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}
