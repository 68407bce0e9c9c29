package protocol

import (
	"bytes"
	"sync/atomic"
)

// CommandHandler handles one decoded command. data holds the remaining
// frame bytes and the handler consumes its own arguments.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device side of the link. Frames from the host carry
// sequence numbers 0x10..0x1F; each accepted frame is dispatched and then
// acknowledged with an empty frame holding the next expected sequence, so
// the host sees every response before the ack that closes the exchange.
type Transport struct {
	synchronized uint32 // atomic bool
	nextSequence uint32 // atomic uint8
	output       OutputBuffer
	handler      CommandHandler

	resetCallback func()
	flushCallback func()

	lastErr error
}

// NewTransport creates a transport writing responses to output
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		synchronized: 1,
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
}

// Receive parses every complete frame in input, dispatches the accepted ones
// and pops what it consumed
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.getSynchronized() {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				data = data[len(data):]
				break
			}
			data = data[i+1:]
			t.setSynchronized(true)
			t.encodeAck()
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		msg, n, err := ParseFrame(data)
		if err == ErrIncomplete {
			break
		}
		if err != nil {
			t.setSynchronized(false)
			continue
		}
		data = data[n:]

		expected := uint8(atomic.LoadUint32(&t.nextSequence))
		if msg.Sequence == MessageDest && expected != MessageDest {
			// host restarted its sequence
			expected = MessageDest
			atomic.StoreUint32(&t.nextSequence, MessageDest)
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if msg.Sequence == expected {
			atomic.StoreUint32(&t.nextSequence, uint32(NextSequence(expected)))
			t.dispatch(msg.Payload)
		}
		// a stale sequence still gets an ack, which acts as a nak
		t.encodeAck()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

func (t *Transport) dispatch(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynchronized(false)
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.lastErr = err
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			t.lastErr = err
			return
		}
	}
}

func (t *Transport) encodeAck() {
	seq := uint8(atomic.LoadUint32(&t.nextSequence))
	_ = EncodeFrame(t.output, seq, nil)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// Send writes one response frame. Responses use the sequence the ack will
// carry.
func (t *Transport) Send(cmdID uint16, args func(output OutputBuffer)) error {
	seq := uint8(atomic.LoadUint32(&t.nextSequence))
	return EncodeFrame(t.output, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// LastError returns the most recent handler or decode error. Call it from
// the context that calls Receive.
func (t *Transport) LastError() error {
	return t.lastErr
}

// Reset returns to the power-on state
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.synchronized, 1)
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback registers fn to run when the host restarts its sequence
func (t *Transport) SetResetCallback(fn func()) {
	t.resetCallback = fn
}

// SetFlushCallback registers fn to push out each ack immediately
func (t *Transport) SetFlushCallback(fn func()) {
	t.flushCallback = fn
}

func (t *Transport) getSynchronized() bool {
	return atomic.LoadUint32(&t.synchronized) != 0
}

func (t *Transport) setSynchronized(val bool) {
	if val {
		atomic.StoreUint32(&t.synchronized, 1)
	} else {
		atomic.StoreUint32(&t.synchronized, 0)
	}
}
