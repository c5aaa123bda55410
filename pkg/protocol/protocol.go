package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const (
	MagicNumber = 0x4B

	OpNearest      = 0x01
	OpRange        = 0x02
	OpInsert       = 0x03
	OpFind         = 0x04
	OpStats        = 0x05
	OpNearestExact = 0x06

	RespOK  = 0x00
	RespErr = 0xFF
	RespVal = 0x01

	// MaxValueSize bounds a single frame payload.
	MaxValueSize = 64 << 20
)

var (
	ErrFrameTooLarge = errors.New("frame value too large")
	ErrKeyTooLarge   = errors.New("frame key too large")
)

const headerSize = 8

// [Magic 1B] [Op 1B] [KeyLen 2B] [ValLen 4B] [Key] [Value]
type Packet struct {
	Op    byte
	Key   []byte
	Value []byte
}

// Encode writes one frame with a single Write call.
func Encode(w io.Writer, op byte, key []byte, value []byte) error {
	if len(key) > math.MaxUint16 {
		return ErrKeyTooLarge
	}
	if len(value) > MaxValueSize {
		return ErrFrameTooLarge
	}
	frame := make([]byte, headerSize+len(key)+len(value))
	frame[0] = MagicNumber
	frame[1] = op
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(key)))
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(value)))
	copy(frame[headerSize:], key)
	copy(frame[headerSize+len(key):], value)

	_, err := w.Write(frame)
	return err
}

func Decode(r io.Reader) (*Packet, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if header[0] != MagicNumber {
		return nil, errors.New("invalid magic number")
	}

	kLen := int(binary.BigEndian.Uint16(header[2:4]))
	vLen := binary.BigEndian.Uint32(header[4:8])
	if vLen > MaxValueSize {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, kLen+int(vLen))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return &Packet{Op: header[1], Key: body[:kLen:kLen], Value: body[kLen:]}, nil
}
