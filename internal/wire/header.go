// Package wire implements the on-wire framing of messages exchanged with
// the daemon over a framed IPC channel: the common header, the per-type
// specific header, and the manual binary codec for both.
package wire

import (
	"encoding/binary"
	"unsafe"
)

// ProtocolVersion is the only IPC protocol version this client speaks.
const ProtocolVersion uint32 = 2

// CommonHeaderSize is the fixed width of CommonHeader on the wire.
const CommonHeaderSize = 12

// SpecificHeaderSize is the fixed width of every specific header variant.
const SpecificHeaderSize = 4

// CommonHeader is present at the start of every framed message.
type CommonHeader struct {
	ProtocolVersion uint32
	MessageType     uint32
	MessageLength   uint32 // length of specific header + payload
}

var _ [CommonHeaderSize]byte = [unsafe.Sizeof(CommonHeader{})]byte{}

// MarshalCommonHeader writes h into buf, which must be at least
// CommonHeaderSize bytes. Returns ErrInsufficientData otherwise.
func MarshalCommonHeader(h CommonHeader, buf []byte) error {
	if len(buf) < CommonHeaderSize {
		return ErrInsufficientData
	}
	binary.LittleEndian.PutUint32(buf[0:4], h.ProtocolVersion)
	binary.LittleEndian.PutUint32(buf[4:8], h.MessageType)
	binary.LittleEndian.PutUint32(buf[8:12], h.MessageLength)
	return nil
}

// UnmarshalCommonHeader reads a CommonHeader from buf.
func UnmarshalCommonHeader(buf []byte) (CommonHeader, error) {
	if len(buf) < CommonHeaderSize {
		return CommonHeader{}, ErrInsufficientData
	}
	return CommonHeader{
		ProtocolVersion: binary.LittleEndian.Uint32(buf[0:4]),
		MessageType:     binary.LittleEndian.Uint32(buf[4:8]),
		MessageLength:   binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// SpecificHeader is a 4-byte field whose interpretation depends on the
// message type. We keep the raw bytes plus typed accessors rather than a
// union, matching how internal/uapi keeps one struct per ioctl command.
type SpecificHeader [SpecificHeaderSize]byte

// ReturnCode interprets the specific header as a control-response return
// code (control responses only).
func (s SpecificHeader) ReturnCode() uint32 {
	return binary.LittleEndian.Uint32(s[:])
}

// InstanceReserved interprets the specific header as a 16-bit service
// instance id followed by 16 reserved bits (routed SOME/IP and PDU
// traffic).
func (s SpecificHeader) InstanceReserved() (instance uint16, reserved uint16) {
	instance = binary.LittleEndian.Uint16(s[0:2])
	reserved = binary.LittleEndian.Uint16(s[2:4])
	return
}

// InstanceClient interprets the specific header as a 16-bit service
// instance id followed by a 16-bit client id (initial field
// notifications).
func (s SpecificHeader) InstanceClient() (instance uint16, client uint16) {
	instance = binary.LittleEndian.Uint16(s[0:2])
	client = binary.LittleEndian.Uint16(s[2:4])
	return
}

// NewReturnCodeHeader builds a specific header carrying a return code.
func NewReturnCodeHeader(code uint32) SpecificHeader {
	var s SpecificHeader
	binary.LittleEndian.PutUint32(s[:], code)
	return s
}

// NewInstanceReservedHeader builds a specific header carrying an instance
// id with the trailing 16 bits reserved (zero).
func NewInstanceReservedHeader(instance uint16) SpecificHeader {
	var s SpecificHeader
	binary.LittleEndian.PutUint16(s[0:2], instance)
	return s
}

// NewInstanceClientHeader builds a specific header carrying an instance id
// and a client id.
func NewInstanceClientHeader(instance, client uint16) SpecificHeader {
	var s SpecificHeader
	binary.LittleEndian.PutUint16(s[0:2], instance)
	binary.LittleEndian.PutUint16(s[2:4], client)
	return s
}

// MarshalError is returned by codec functions on malformed input, mirroring
// internal/uapi's MarshalError string-error type.
type MarshalError string

func (e MarshalError) Error() string { return string(e) }

const (
	ErrInsufficientData MarshalError = "wire: insufficient data"
	ErrInvalidType      MarshalError = "wire: invalid message type"
)
