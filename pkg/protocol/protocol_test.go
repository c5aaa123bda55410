package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"geokd/pkg/common"
)

func TestEncodeDecode(t *testing.T) {
	buf := new(bytes.Buffer)
	key := []byte{0x01}
	val := EncodeFloats(48.8566, 2.3522)

	if err := Encode(buf, OpNearest, key, val); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	pkg, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if pkg.Op != OpNearest {
		t.Errorf("got op %v, want %v", pkg.Op, OpNearest)
	}
	if !bytes.Equal(pkg.Key, key) {
		t.Errorf("key mismatch: got %v", pkg.Key)
	}
	if !bytes.Equal(pkg.Value, val) {
		t.Errorf("value mismatch: got %v", pkg.Value)
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	buf := bytes.NewReader([]byte{0x00, OpNearest, 0, 0, 0, 0, 0, 0})
	_, err := Decode(buf)
	if err == nil || err.Error() != "invalid magic number" {
		t.Errorf("expected invalid magic error, got %v", err)
	}
}

func TestEncodeDecodeEmptyKeyValue(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := Encode(buf, OpStats, []byte{}, []byte{}); err != nil {
		t.Fatalf("Encode empty failed: %v", err)
	}
	pkg, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if pkg.Op != OpStats || len(pkg.Key) != 0 || len(pkg.Value) != 0 {
		t.Errorf("unexpected result: %+v", pkg)
	}
}

func TestRoundtripAllOps(t *testing.T) {
	ops := []byte{OpNearest, OpRange, OpInsert, OpFind, OpStats, OpNearestExact}
	key := []byte{0x01, 0x02}
	val := []byte("test-value")

	for _, op := range ops {
		buf := new(bytes.Buffer)
		if err := Encode(buf, op, key, val); err != nil {
			t.Errorf("Encode op %v failed: %v", op, err)
			continue
		}
		pkg, err := Decode(buf)
		if err != nil {
			t.Errorf("Decode op %v failed: %v", op, err)
			continue
		}
		if pkg.Op != op {
			t.Errorf("op %v: got %v", op, pkg.Op)
		}
	}
}

func TestDecodeIncompleteHeader(t *testing.T) {
	r := bytes.NewReader([]byte{MagicNumber, 0x01}) // only 2 bytes
	_, err := Decode(r)
	if err != io.ErrUnexpectedEOF {
		t.Errorf("expected ErrUnexpectedEOF for incomplete header, got %v", err)
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	header := []byte{MagicNumber, OpRange, 0, 0, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(header[4:8], MaxValueSize+1)
	if _, err := Decode(bytes.NewReader(header)); err != ErrFrameTooLarge {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestRecordsPayload(t *testing.T) {
	records := []common.Record{
		{City: "Paris", Lat: 48.8566, Lon: 2.3522},
		{City: "", Lat: -1, Lon: 1},
		{City: "São Paulo", Lat: -23.55, Lon: -46.6333},
	}
	got, err := DecodeRecords(EncodeRecords(records))
	if err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("record %d: got %v want %v", i, got[i], records[i])
		}
	}

	empty, err := DecodeRecords(EncodeRecords(nil))
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty payload: %v %v", empty, err)
	}

	forged := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := DecodeRecords(forged); err != ErrShortPayload {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestFloatsPayload(t *testing.T) {
	vals, err := DecodeFloats(EncodeFloats(1.5, -2.25, 3), 3)
	if err != nil {
		t.Fatalf("decode floats: %v", err)
	}
	if vals[0] != 1.5 || vals[1] != -2.25 || vals[2] != 3 {
		t.Fatalf("unexpected floats: %v", vals)
	}
	if _, err := DecodeFloats([]byte{1, 2, 3}, 1); err != ErrShortPayload {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}
