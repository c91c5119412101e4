package shipgate

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sylverant/shipfabric/internal/cipher"
	"github.com/sylverant/shipfabric/internal/framing"
)

// TestPerformHandshake_KeyDirectionsInteroperate runs performHandshake
// against a simulated ship client that derives its own keys the way
// internal/ship/shipgate_client.go does, and checks traffic each side
// encrypts is readable by the other. This pins spec.md §8 scenario 6's
// direction assignment (shipgate's recv key derives from its own
// gate-nonce) rather than only the KDF formula in isolation.
func TestPerformHandshake_KeyDirectionsInteroperate(t *testing.T) {
	shipConn, gateConn := net.Pipe()
	defer shipConn.Close()
	defer gateConn.Close()

	sharedKey := make([]byte, 128)
	for i := range sharedKey {
		sharedKey[i] = byte(i * 3)
	}

	type shipSide struct {
		recvCipher cipher.StreamCipher
		sendCipher cipher.StreamCipher
	}
	shipResult := make(chan shipSide, 1)

	go func() {
		reader := bufio.NewReader(shipConn)
		welcome, err := framing.ReadFrame(reader, clearCipher{}, gateCodec)
		require.NoError(t, err)
		require.Equal(t, opWelcome, int(welcome.Opcode))
		var gateNonce, shipNonce [4]byte
		copy(gateNonce[:], welcome.Payload[0:4])
		copy(shipNonce[:], welcome.Payload[4:8])

		login := make([]byte, 32+len("TestShip"))
		login[4], login[5] = 'G', 'M'
		copy(login[32:], "TestShip")
		loginFrame := framing.EncodeFrame(clearCipher{}, gateCodec, opLogin, 0, login)
		_, err = shipConn.Write(loginFrame)
		require.NoError(t, err)

		var keyArr [128]byte
		copy(keyArr[:], sharedKey)
		recvKey := cipher.DeriveShipgateSessionKey(keyArr, shipNonce)
		sendKey := cipher.DeriveShipgateSessionKey(keyArr, gateNonce)
		recvCipher, err := cipher.NewRC4Cipher(recvKey)
		require.NoError(t, err)
		sendCipher, err := cipher.NewRC4Cipher(sendKey)
		require.NoError(t, err)
		shipResult <- shipSide{recvCipher: recvCipher, sendCipher: sendCipher}
	}()

	reader := bufio.NewReader(gateConn)
	result, err := performHandshake(context.Background(), gateConn, reader,
		func(context.Context, int64) ([]byte, error) { return sharedKey, nil },
		func(context.Context, int64) (bool, error) { return true, nil },
		0, 0xFFFFFFFF)
	require.NoError(t, err)

	ship := <-shipResult

	plaintext := []byte("hello from shipgate")
	frame := framing.EncodeFrame(result.sendCipher, gateCodec, 0x50, 0, plaintext)
	decoded, err := framing.ReadFrame(&sliceReader{frame}, ship.recvCipher, gateCodec)
	require.NoError(t, err)
	require.Equal(t, plaintext, decoded.Payload)

	reply := []byte("hello from ship")
	replyFrame := framing.EncodeFrame(ship.sendCipher, gateCodec, 0x51, 0, reply)
	decodedReply, err := framing.ReadFrame(&sliceReader{replyFrame}, result.recvCipher, gateCodec)
	require.NoError(t, err)
	require.Equal(t, reply, decodedReply.Payload)
}

// sliceReader adapts a fixed byte slice to io.Reader for framing.ReadFrame.
type sliceReader struct{ b []byte }

func (s *sliceReader) Read(p []byte) (int, error) {
	if len(s.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.b)
	s.b = s.b[n:]
	return n, nil
}
