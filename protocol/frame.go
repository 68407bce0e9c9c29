package protocol

import "errors"

var (
	ErrBadFrame     = errors.New("malformed frame")
	ErrBadCRC       = errors.New("frame CRC mismatch")
	ErrIncomplete   = errors.New("incomplete frame")
	ErrPayloadLarge = errors.New("payload exceeds frame size")
)

// Message is one parsed frame
type Message struct {
	Sequence uint8
	Payload  []byte // bytes between header and trailer
}

// NextSequence returns the sequence following seq
func NextSequence(seq uint8) uint8 {
	return (seq+1)&MessageSeqMask | MessageDest
}

// EncodeFrame writes one frame around whatever body writes. It returns
// ErrPayloadLarge, after writing, when the frame exceeds MessageLengthMax.
func EncodeFrame(output OutputBuffer, seq uint8, body func(output OutputBuffer)) error {
	start := output.CurPosition()
	output.Output([]byte{0, seq})
	if body != nil {
		body(output)
	}

	length := len(output.DataSince(start)) + MessageTrailerSize
	output.Update(start, uint8(length))

	crc := CRC16(output.DataSince(start))
	output.Output([]byte{byte(crc >> 8), byte(crc), MessageValueSync})

	if length > MessageLengthMax {
		return ErrPayloadLarge
	}
	return nil
}

// ParseFrame parses the frame at the start of data. It returns the number of
// bytes consumed; on ErrIncomplete nothing is consumed and the caller should
// wait for more data. On other errors the caller should drop consumed bytes
// and resynchronize with SkipToSync.
func ParseFrame(data []byte) (Message, int, error) {
	if len(data) < MessageLengthMin {
		return Message{}, 0, ErrIncomplete
	}
	length := int(data[MessagePositionLen])
	if length < MessageLengthMin || length > MessageLengthMax {
		return Message{}, 1, ErrBadFrame
	}
	seq := data[MessagePositionSeq]
	if seq&^MessageSeqMask != MessageDest {
		return Message{}, 1, ErrBadFrame
	}
	if len(data) < length {
		return Message{}, 0, ErrIncomplete
	}
	if data[length-1] != MessageValueSync {
		return Message{}, 1, ErrBadFrame
	}
	want := uint16(data[length-3])<<8 | uint16(data[length-2])
	if CRC16(data[:length-MessageTrailerSize]) != want {
		return Message{}, length, ErrBadCRC
	}
	return Message{
		Sequence: seq,
		Payload:  data[MessageHeaderSize : length-MessageTrailerSize],
	}, length, nil
}

// SkipToSync returns the offset just past the next sync byte, or len(data)
// when there is none
func SkipToSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i + 1
		}
	}
	return len(data)
}

// ParseStream parses every complete frame in data, calling fn for each,
// resynchronizing past garbage. It returns the number of bytes consumed.
func ParseStream(data []byte, fn func(Message)) int {
	consumed := 0
	synced := true
	for consumed < len(data) {
		rest := data[consumed:]
		if !synced {
			consumed += SkipToSync(rest)
			synced = true
			continue
		}
		if rest[0] == MessageValueSync {
			consumed++
			continue
		}
		msg, n, err := ParseFrame(rest)
		switch {
		case err == nil:
			consumed += n
			fn(msg)
		case errors.Is(err, ErrIncomplete):
			return consumed
		case errors.Is(err, ErrBadCRC):
			consumed += n
		default:
			synced = false
		}
	}
	return consumed
}
