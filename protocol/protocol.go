// Package protocol implements the framed VLQ protocol used to inspect a
// running engine: the host asks for stats or a buffer dump, the device
// answers with one or more response frames.
package protocol

// Version is the wire protocol version reported by get_info
const Version = 1

// Frame layout: [len][seq][payload...][crc hi][crc lo][sync]
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageValueSync   = 0x7E

	// Sequence numbers carry a fixed 0x10 marker in the high nibble
	MessageDest    = 0x10
	MessageSeqMask = 0x0F
	MessageMax     = 512 // scratch output capacity
)

// Command and response IDs
const (
	CmdGetInfo     uint16 = 1
	RespInfo       uint16 = 2
	CmdGetStats    uint16 = 3
	RespStats      uint16 = 4
	CmdDumpBuffer  uint16 = 5
	RespBufferData uint16 = 6
	RespError      uint16 = 7
)
