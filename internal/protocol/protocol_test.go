package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		typ     MessageType
		payload []byte
	}{
		{name: "empty payload", typ: ReqLogout, payload: nil},
		{name: "small payload", typ: ReqLogin, payload: []byte{0x01, 0x02, 0x03}},
		{name: "max-ish payload", typ: RepBalance, payload: bytes.Repeat([]byte{0xAB}, 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.typ, tt.payload); err != nil {
				t.Fatalf("WriteFrame returned error: %v", err)
			}

			h, err := ReadHeader(&buf, 0)
			if err != nil {
				t.Fatalf("ReadHeader returned error: %v", err)
			}
			if h.Magic != Magic || h.Version != Version || h.Type != tt.typ {
				t.Fatalf("decoded header mismatch: %+v", h)
			}
			if h.Length != uint32(len(tt.payload)) {
				t.Fatalf("expected length %d, got %d", len(tt.payload), h.Length)
			}

			body, err := ReadBody(&buf, h)
			if err != nil {
				t.Fatalf("ReadBody returned error: %v", err)
			}
			if !bytes.Equal(body, tt.payload) {
				t.Fatalf("payload mismatch: got %v want %v", body, tt.payload)
			}
		})
	}
}

func TestDecodeHeaderRejectsCorruptEnvelopes(t *testing.T) {
	valid := EncodeFrame(ReqBalance, nil)

	tests := []struct {
		name     string
		mutate   func([]byte)
		max      uint32
		wantKind FrameErrorKind
	}{
		{
			name:     "bad magic",
			mutate:   func(b []byte) { b[0] = 'X' },
			wantKind: FrameBadMagic,
		},
		{
			name:     "version mismatch",
			mutate:   func(b []byte) { b[4] = Version + 1 },
			wantKind: FrameVersionMismatch,
		},
		{
			name:     "length too large",
			mutate:   func(b []byte) { b[6] = 0xFF; b[7] = 0xFF; b[8] = 0xFF; b[9] = 0xFF },
			wantKind: FrameLengthTooLarge,
		},
		{
			name:     "length over configured maximum",
			mutate:   func(b []byte) { b[9] = 200 },
			max:      100,
			wantKind: FrameLengthTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := make([]byte, HeaderSize)
			copy(raw, valid[:HeaderSize])
			tt.mutate(raw)

			var fixed [HeaderSize]byte
			copy(fixed[:], raw)
			_, err := DecodeHeader(fixed, tt.max)
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FrameError, got %v", err)
			}
			if fe.Kind != tt.wantKind {
				t.Fatalf("expected kind %v, got %v", tt.wantKind, fe.Kind)
			}
			if !fe.Fatal() {
				t.Fatalf("expected %v to be fatal", fe.Kind)
			}
		})
	}
}

func TestReadBodyTruncated(t *testing.T) {
	frame := EncodeFrame(ReqTransfer, []byte{1, 2, 3, 4})
	// Drop the last two payload bytes.
	r := bytes.NewReader(frame[:len(frame)-2])

	h, err := ReadHeader(r, 0)
	if err != nil {
		t.Fatalf("ReadHeader returned error: %v", err)
	}
	_, err = ReadBody(r, h)
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FrameError, got %v", err)
	}
	if fe.Kind != FrameTruncated {
		t.Fatalf("expected truncated, got %v", fe.Kind)
	}
	if fe.Fatal() {
		t.Fatal("truncated body must not be fatal; it feeds the error budget")
	}
}

func TestReadHeaderShortStream(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte{0x48, 0x45}), 0)
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FrameError, got %v", err)
	}
	if fe.Kind != FrameTruncated {
		t.Fatalf("expected truncated, got %v", fe.Kind)
	}
}
