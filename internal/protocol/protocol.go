/**
 * @description
 * This package implements the HBP wire format: a fixed 10-byte header
 * followed by a length-prefixed binary payload. The header carries a magic
 * constant, protocol version, message type and payload length; all integers
 * are big-endian regardless of host byte order.
 *
 * Decoding distinguishes unrecoverable stream corruption (bad magic,
 * oversize length, version mismatch) from transient failures (short reads,
 * transport errors). The connection loop terminates on the former and counts
 * the latter against a per-connection error budget.
 *
 * @dependencies
 * - encoding/binary, io: Standard Go libraries.
 */
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Magic is the HBP magic constant ("HERB").
	Magic uint32 = 0x48455242
	// Version is the protocol generation implemented by this server.
	Version uint8 = 1
	// HeaderSize is the fixed wire size of a frame header.
	HeaderSize = 10
	// DefaultMaxPayload bounds the length field of any frame.
	DefaultMaxPayload uint32 = 65536
)

// MessageType identifies a request or reply. Requests occupy the low half of
// the byte; replies have the high bit set so a header alone tells direction.
type MessageType uint8

const (
	ReqLogin MessageType = iota + 1
	ReqLogout
	ReqInfo
	ReqBalance
	ReqTransfer
	ReqPINUpdate
	ReqAccounts
)

const (
	RepLogin MessageType = iota + 0x81
	RepTerminated
	RepInfo
	RepBalance
	RepTransfer
	RepPINUpdate
	RepAccounts
	RepError
)

// IsRequest reports whether t is in the request half of the type space.
func (t MessageType) IsRequest() bool { return t < 0x80 }

func (t MessageType) String() string {
	switch t {
	case ReqLogin:
		return "login"
	case ReqLogout:
		return "logout"
	case ReqInfo:
		return "info"
	case ReqBalance:
		return "balance"
	case ReqTransfer:
		return "transfer"
	case ReqPINUpdate:
		return "pin_update"
	case ReqAccounts:
		return "accounts"
	case RepLogin:
		return "login_reply"
	case RepTerminated:
		return "terminated"
	case RepInfo:
		return "info_reply"
	case RepBalance:
		return "balance_reply"
	case RepTransfer:
		return "transfer_reply"
	case RepPINUpdate:
		return "pin_update_reply"
	case RepAccounts:
		return "accounts_reply"
	case RepError:
		return "error"
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(t))
}

// Header is the frame envelope present on every message in both directions.
type Header struct {
	Magic   uint32
	Version uint8
	Type    MessageType
	Length  uint32
}

// FrameErrorKind classifies codec failures.
type FrameErrorKind int

const (
	// FrameBadMagic: the magic constant did not match. The stream alignment
	// cannot be trusted afterward; the connection must be closed.
	FrameBadMagic FrameErrorKind = iota
	// FrameVersionMismatch: the peer speaks a different protocol generation.
	FrameVersionMismatch
	// FrameLengthTooLarge: declared payload length exceeds the configured
	// maximum. Fatal, as reading past it would desynchronize the stream.
	FrameLengthTooLarge
	// FrameTruncated: fewer bytes arrived than the header declared.
	FrameTruncated
	// FrameIo: the underlying transport failed.
	FrameIo
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameBadMagic:
		return "bad magic"
	case FrameVersionMismatch:
		return "version mismatch"
	case FrameLengthTooLarge:
		return "length too large"
	case FrameTruncated:
		return "truncated"
	case FrameIo:
		return "io"
	}
	return "unknown"
}

// FrameError is returned by header and body decoding.
type FrameError struct {
	Kind FrameErrorKind
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame error: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("frame error: %s", e.Kind)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Fatal reports whether the connection must be terminated: once magic or
// length validation fails the byte alignment of the stream is unknown.
func (e *FrameError) Fatal() bool {
	switch e.Kind {
	case FrameBadMagic, FrameVersionMismatch, FrameLengthTooLarge:
		return true
	}
	return false
}

func frameErr(kind FrameErrorKind, err error) *FrameError {
	return &FrameError{Kind: kind, Err: err}
}

// DecodeHeader validates a raw header against the protocol constants and the
// configured payload maximum. maxPayload <= 0 selects DefaultMaxPayload.
func DecodeHeader(raw [HeaderSize]byte, maxPayload uint32) (Header, error) {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}
	h := Header{
		Magic:   binary.BigEndian.Uint32(raw[0:4]),
		Version: raw[4],
		Type:    MessageType(raw[5]),
		Length:  binary.BigEndian.Uint32(raw[6:10]),
	}
	if h.Magic != Magic {
		return h, frameErr(FrameBadMagic, fmt.Errorf("got 0x%08x", h.Magic))
	}
	if h.Version != Version {
		return h, frameErr(FrameVersionMismatch, fmt.Errorf("got %d want %d", h.Version, Version))
	}
	if h.Length > maxPayload {
		return h, frameErr(FrameLengthTooLarge, fmt.Errorf("declared %d max %d", h.Length, maxPayload))
	}
	return h, nil
}

// ReadHeader pulls the next frame header off the stream.
func ReadHeader(r io.Reader, maxPayload uint32) (Header, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Header{}, frameErr(FrameTruncated, err)
		}
		return Header{}, frameErr(FrameIo, err)
	}
	return DecodeHeader(raw, maxPayload)
}

// ReadBody reads the payload declared by a validated header. A zero-length
// payload is valid and yields a nil slice.
func ReadBody(r io.Reader, h Header) ([]byte, error) {
	if h.Length == 0 {
		return nil, nil
	}
	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, frameErr(FrameTruncated, err)
		}
		return nil, frameErr(FrameIo, err)
	}
	return body, nil
}

// EncodeFrame serializes a complete frame for the given type and payload.
func EncodeFrame(typ MessageType, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = Version
	buf[5] = uint8(typ)
	binary.BigEndian.PutUint32(buf[6:10], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// WriteFrame writes a complete frame to the transport.
func WriteFrame(w io.Writer, typ MessageType, payload []byte) error {
	if _, err := w.Write(EncodeFrame(typ, payload)); err != nil {
		return frameErr(FrameIo, err)
	}
	return nil
}
