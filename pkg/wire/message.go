package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the fixed size, in bytes, of a frame header: a u16 message
// type followed by a u32 payload size, both little-endian on the wire.
const HeaderSize = 2 + 4

// MaxPayloadSize bounds how much memory Recv will allocate for a single
// frame's payload, guarding against a peer claiming an absurd length.
const MaxPayloadSize = 1 << 20

var (
	errEmptyInt = errors.New("wire: empty integer")
	errBadInt   = errors.New("wire: malformed integer")
)

// ErrDisconnected is returned by Send/Recv when the peer has closed the
// connection or a transport error makes the stream unusable.
var ErrDisconnected = errors.New("wire: disconnected")

// ErrMalformedMessage is returned by Recv when a frame's header claims a
// payload size that cannot be honoured (e.g. exceeds MaxPayloadSize).
var ErrMalformedMessage = errors.New("wire: malformed message")

// Client→server message type codes. Numeric assignment is contiguous
// starting at 0; this space overlaps numerically with the server→client
// codes below, so disambiguation between the two is always by direction,
// never by value.
const (
	MsgLogin uint16 = iota
	MsgCreateGame
	MsgJoinGame
	MsgLeaveGame
	MsgReadyToPlay
	MsgStartGame
	MsgAttack
	MsgSetupFleet
)

// Server→client message type codes.
const (
	MsgWelcome uint16 = iota
	MsgGameCreated
	MsgGameJoined
	MsgErrorCreateGame
	MsgErrorJoinGame
	MsgErrorNotAuthenticated
	MsgGameStateUpdate
	MsgPlayerJoined
	MsgPlayerLeft
	MsgGameStarted
	MsgTurnOrderUpdate
	MsgYourTurn
	MsgAttackUpdate
	MsgGameFinished
	MsgErrorStartGame
	MsgErrorPlayerAction
	MsgErrorNotYourTurn
	MsgErrorUnexpectedMessage
	MsgErrorMalformedMessage
)

// Send writes one complete frame: header followed by the serialized
// payload. It blocks until the whole frame is written or an error occurs.
func Send(w io.Writer, msgType uint16, p Payload) error {
	body := Serialize(p)

	var header [HeaderSize]byte
	binary.LittleEndian.PutUint16(header[0:2], msgType)
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(body)))

	if err := writeFull(w, header[:]); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return writeFull(w, []byte(body))
}

// Recv reads one complete frame and decodes its payload. It blocks until a
// full frame has arrived or an error occurs.
func Recv(r io.Reader) (uint16, Payload, error) {
	var header [HeaderSize]byte
	if err := readFull(r, header[:]); err != nil {
		return 0, nil, err
	}

	msgType := binary.LittleEndian.Uint16(header[0:2])
	payloadSize := binary.LittleEndian.Uint32(header[2:6])
	if payloadSize > MaxPayloadSize {
		return 0, nil, ErrMalformedMessage
	}

	if payloadSize == 0 {
		return msgType, nil, nil
	}

	buf := make([]byte, payloadSize)
	if err := readFull(r, buf); err != nil {
		return 0, nil, err
	}
	return msgType, Parse(string(buf)), nil
}

func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return translateErr(err)
		}
		buf = buf[n:]
	}
	return nil
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

// translateErr maps EOF/reset/broken-pipe style errors onto ErrDisconnected
// so callers never need to special-case net.OpError or io.EOF directly.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, err)
}
