package protocol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrTimeout = errors.New("timed out waiting for device")
	ErrClosed  = errors.New("transport closed")
)

// Response is one decoded response frame
type Response struct {
	Sequence uint8
	ID       uint16
	Args     []byte // remaining arguments after the response ID
}

// HostTransport is the host side of the link: it sends commands, collects
// the responses that precede the device's ack and hands them back together
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq uint32 // atomic uint8

	input   *FifoBuffer
	scratch *ScratchOutput

	frames chan Message

	writeMu    sync.Mutex
	exchangeMu sync.Mutex

	// frames dropped because nobody was reading
	dropped atomic.Uint32

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewHostTransport starts a background reader on port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:       port,
		currentSeq: MessageDest,
		input:      NewFifoBuffer(1024),
		scratch:    NewScratchOutput(),
		frames:     make(chan Message, 32),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Exchange sends one command and returns every response that arrives before
// the matching ack
func (t *HostTransport) Exchange(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) ([]Response, error) {
	t.exchangeMu.Lock()
	defer t.exchangeMu.Unlock()

	t.drain()

	seq := uint8(atomic.LoadUint32(&t.currentSeq))
	if err := t.SendCommand(seq, cmdID, args); err != nil {
		return nil, err
	}

	want := NextSequence(seq)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var responses []Response
	for {
		select {
		case msg := <-t.frames:
			if len(msg.Payload) == 0 {
				if msg.Sequence != want {
					return nil, fmt.Errorf("sequence mismatch: sent 0x%02x, ack 0x%02x", seq, msg.Sequence)
				}
				atomic.StoreUint32(&t.currentSeq, uint32(want))
				return responses, nil
			}
			data := msg.Payload
			id, err := DecodeVLQUint(&data)
			if err != nil {
				return nil, fmt.Errorf("response header: %w", err)
			}
			responses = append(responses, Response{Sequence: msg.Sequence, ID: uint16(id), Args: data})
		case <-deadline.C:
			return nil, fmt.Errorf("command %d: %w after %v", cmdID, ErrTimeout, timeout)
		case <-t.done:
			return nil, ErrClosed
		}
	}
}

// SendCommand writes one command frame with the given sequence
func (t *HostTransport) SendCommand(seq uint8, cmdID uint16, args func(output OutputBuffer)) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.scratch.Reset()
	err := EncodeFrame(t.scratch, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
	if err != nil {
		return fmt.Errorf("command %d: %w", cmdID, err)
	}

	msg := t.scratch.Result()
	n, err := t.port.Write(msg)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// ReceiveResponse waits for the next unsolicited frame
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Message, error) {
	select {
	case msg := <-t.frames:
		return msg, nil
	case <-time.After(timeout):
		return Message{}, ErrTimeout
	case <-t.done:
		return Message{}, ErrClosed
	}
}

// Dropped returns how many frames were discarded because the queue was full
func (t *HostTransport) Dropped() uint32 {
	return t.dropped.Load()
}

// Sequence returns the next sequence number to send
func (t *HostTransport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}

func (t *HostTransport) drain() {
	for {
		select {
		case <-t.frames:
		default:
			return
		}
	}
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			consumed := ParseStream(t.input.Data(), t.deliver)
			t.input.Pop(consumed)
		}
		if err != nil {
			select {
			case <-t.stop:
				return
			default:
			}
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				return
			}
			// serial reads report io.EOF on an inter-byte timeout
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) deliver(msg Message) {
	payload := make([]byte, len(msg.Payload))
	copy(payload, msg.Payload)
	msg.Payload = payload

	select {
	case t.frames <- msg:
	default:
		t.dropped.Add(1)
	}
}

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
