package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"geokd/pkg/common"
)

var ErrShortPayload = errors.New("payload too short")

func putFloat(b []byte, v float64) {
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
}

func getFloat(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// EncodeFloats packs values as consecutive big-endian float64s.
func EncodeFloats(vals ...float64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		putFloat(b[i*8:], v)
	}
	return b
}

// DecodeFloats unpacks exactly n float64s.
func DecodeFloats(b []byte, n int) ([]float64, error) {
	if len(b) < 8*n {
		return nil, ErrShortPayload
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = getFloat(b[i*8:])
	}
	return out, nil
}

// EncodeRecords: [Count 4B] + ( [Lat 8B] + [Lon 8B] + [NameLen 2B] + [Name] ) * Count
func EncodeRecords(records []common.Record) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(records)))

	for _, r := range records {
		binary.Write(buf, binary.BigEndian, r.Lat)
		binary.Write(buf, binary.BigEndian, r.Lon)
		name := r.City
		if len(name) > math.MaxUint16 {
			name = name[:math.MaxUint16]
		}
		binary.Write(buf, binary.BigEndian, uint16(len(name)))
		buf.WriteString(name)
	}
	return buf.Bytes()
}

func DecodeRecords(data []byte) ([]common.Record, error) {
	buf := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(buf, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	// each record needs at least 18 bytes
	if int64(count)*18 > int64(buf.Len()) {
		return nil, ErrShortPayload
	}

	records := make([]common.Record, count)
	for i := range records {
		var nameLen uint16
		if err := binary.Read(buf, binary.BigEndian, &records[i].Lat); err != nil {
			return nil, err
		}
		if err := binary.Read(buf, binary.BigEndian, &records[i].Lon); err != nil {
			return nil, err
		}
		if err := binary.Read(buf, binary.BigEndian, &nameLen); err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(buf, name); err != nil {
			return nil, err
		}
		records[i].City = string(name)
	}
	return records, nil
}
