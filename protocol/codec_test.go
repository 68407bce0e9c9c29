package protocol

import "testing"

func TestVLQIntRoundTrip(t *testing.T) {
	values := []int32{
		0, 1, -1, 95, 96, -32, -33, 127, -128, 4095, 12287, 12288,
		-4096, -4097, 65535, -65535, 1000000, -1000000,
		1<<31 - 1, -1 << 31,
	}

	for _, want := range values {
		output := NewScratchOutput()
		EncodeVLQInt(output, want)
		encoded := output.Result()

		if len(encoded) != VLQSize(want) {
			t.Errorf("value %d: encoded %d bytes, VLQSize says %d", want, len(encoded), VLQSize(want))
		}

		data := encoded
		got, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("value %d: decode failed: %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("value %d: decoded %d (bytes %v)", want, got, encoded)
		}
		if len(data) != 0 {
			t.Errorf("value %d: %d bytes left over", want, len(data))
		}
	}
}

func TestVLQUintRoundTrip(t *testing.T) {
	for _, want := range []uint32{0, 1, 127, 128, 2047, 4095, 65535, 1000000, 0xFFFFFFFF} {
		output := NewScratchOutput()
		EncodeVLQUint(output, want)

		data := output.Result()
		got, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("value %d: decode failed: %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("value %d: decoded %d", want, got)
		}
	}
}

func TestVLQSampleWidth(t *testing.T) {
	// 12-bit samples must fit two bytes for ChunkValues to hold
	if n := VLQSize(4095); n != 2 {
		t.Errorf("VLQSize(4095) = %d, want 2", n)
	}
	if n := VLQSize(95); n != 1 {
		t.Errorf("VLQSize(95) = %d, want 1", n)
	}
}

func TestVLQBytes(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0xFF, 0xFE, 0xFD},
		make([]byte, 50),
	}

	for i, want := range cases {
		output := NewScratchOutput()
		EncodeVLQBytes(output, want)

		data := output.Result()
		got, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("case %d: decode failed: %v", i, err)
			continue
		}
		if string(got) != string(want) {
			t.Errorf("case %d: got %v, want %v", i, got, want)
		}
	}
}

func TestVLQTruncated(t *testing.T) {
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}

	data = []byte{}
	if _, err := DecodeVLQUint(&data); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall on empty input, got %v", err)
	}

	// length prefix longer than the remaining data
	data = []byte{5, 1, 2}
	if _, err := DecodeVLQBytes(&data); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall for short byte string, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("expected ErrInvalidVLQ, got %v", err)
	}
}

func TestCRC16KnownValues(t *testing.T) {
	cases := []struct {
		data []byte
		want uint16
	}{
		{[]byte{}, 0xFFFF},
		{[]byte("123456789"), 0x6F91},
		{[]byte{5, MessageDest}, 0x9E81},
	}

	for _, tc := range cases {
		if got := CRC16(tc.data); got != tc.want {
			t.Errorf("CRC16(%v) = 0x%04X, want 0x%04X", tc.data, got, tc.want)
		}
	}
}

func TestCRC16Detects(t *testing.T) {
	if CRC16([]byte{0x01, 0x02, 0x03}) == CRC16([]byte{0x01, 0x02, 0x04}) {
		t.Error("single-bit change produced the same CRC")
	}
}
