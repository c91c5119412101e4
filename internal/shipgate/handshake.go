package shipgate

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/sylverant/shipfabric/internal/cipher"
	"github.com/sylverant/shipfabric/internal/framing"
	"github.com/sylverant/shipfabric/internal/mtrand"
)

var gateCodec = framing.GateCodec{}

// clearCipher sends/reads the handshake frames before any RC4 key
// exists, per spec.md §4.5 steps 1-2.
type clearCipher struct{}

func (clearCipher) Encrypt([]byte) {}
func (clearCipher) Decrypt([]byte) {}

// loginRequest is the decoded ship->shipgate login packet, mirroring
// internal/ship.encodeLogin's layout.
type loginRequest struct {
	keyIndex   int64
	menuCode   int32
	externalIP net.IP
	internalIP net.IP
	port       int32
	version    uint32
	clients    int32
	games      int32
	gmOnly     bool
	name       string
}

func decodeLoginRequest(payload []byte) (loginRequest, error) {
	if len(payload) < 32 {
		return loginRequest{}, fmt.Errorf("login packet too short: %d bytes", len(payload))
	}

	var req loginRequest
	req.keyIndex = int64(binary.BigEndian.Uint32(payload[0:4]))
	req.menuCode = decodeMenuCode(payload[4:6])
	req.externalIP = net.IP(append([]byte(nil), payload[8:12]...))
	req.internalIP = net.IP(append([]byte(nil), payload[12:16]...))
	req.port = int32(binary.BigEndian.Uint16(payload[16:18]))
	req.version = binary.BigEndian.Uint32(payload[18:22])
	req.clients = int32(binary.BigEndian.Uint32(payload[22:26]))
	req.games = int32(binary.BigEndian.Uint32(payload[26:30]))
	flags := binary.BigEndian.Uint16(payload[30:32])
	req.gmOnly = flags&1 != 0
	req.name = cstr(payload[32:])
	return req, nil
}

func decodeMenuCode(b []byte) int32 {
	if b[0] == 0 && b[1] == 0 {
		return 0
	}
	return int32(b[0])<<8 | int32(b[1])
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// handshakeResult is everything handleConn needs after a successful
// handshake: the ship record (minus conn/cipher, filled by the caller)
// and the two derived ciphers.
type handshakeResult struct {
	ship       Ship
	recvCipher cipher.StreamCipher
	sendCipher cipher.StreamCipher
}

// menuAllowed reports whether the caller's menu-code satisfies spec.md
// §4.5 step 4: zero is allowed only if mainMenu permits it, two ASCII
// letters are always allowed.
func menuAllowed(code int32, mainMenu bool) error {
	if code == 0 {
		if !mainMenu {
			return errBadMenu
		}
		return nil
	}
	hi, lo := byte(code>>8), byte(code)
	if !isASCIILetter(hi) || !isASCIILetter(lo) {
		return errInvalMenu
	}
	return nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// performHandshake runs spec.md §4.5 steps 1-4 over conn, returning the
// negotiated Ship record (without its conn/ciphers populated) and the
// derived per-direction ciphers.
func performHandshake(ctx context.Context, conn net.Conn, reader *bufio.Reader, rc4Key func(ctx context.Context, keyIndex int64) ([]byte, error), checkMainMenu func(ctx context.Context, keyIndex int64) (bool, error), minVersion, maxVersion uint32) (*handshakeResult, error) {
	rng := mtrand.NewSource(seedFromEntropy())
	var gateNonce, shipNonce [4]byte
	rng.Bytes(gateNonce[:])
	rng.Bytes(shipNonce[:])

	welcomePayload := make([]byte, 8)
	copy(welcomePayload[0:4], gateNonce[:])
	copy(welcomePayload[4:8], shipNonce[:])
	welcomeFrame := framing.EncodeFrame(clearCipher{}, gateCodec, opWelcome, 0, welcomePayload)
	if _, err := conn.Write(welcomeFrame); err != nil {
		return nil, fmt.Errorf("sending shipgate welcome: %w", err)
	}

	frame, err := framing.ReadFrame(reader, clearCipher{}, gateCodec)
	if err != nil {
		return nil, fmt.Errorf("reading ship login: %w", err)
	}
	if frame.Opcode != opLogin {
		sendRejection(conn, opBadProto)
		return nil, errBadProto
	}

	req, err := decodeLoginRequest(frame.Payload)
	if err != nil {
		sendRejection(conn, opBadProto)
		return nil, err
	}

	if req.version < minVersion || req.version > maxVersion {
		sendRejection(conn, opBadProto)
		return nil, errBadProto
	}

	sharedKey, err := rc4Key(ctx, req.keyIndex)
	if err != nil {
		return nil, fmt.Errorf("loading shared key for index %d: %w", req.keyIndex, err)
	}
	if len(sharedKey) != 128 {
		sendRejection(conn, opBadKey)
		return nil, errBadKey
	}

	mainMenu, err := checkMainMenu(ctx, req.keyIndex)
	if err != nil {
		return nil, fmt.Errorf("checking main-menu flag for index %d: %w", req.keyIndex, err)
	}
	if err := menuAllowed(req.menuCode, mainMenu); err != nil {
		if err == errBadMenu {
			sendRejection(conn, opBadMenu)
		} else {
			sendRejection(conn, opInvalMenu)
		}
		return nil, err
	}

	var sharedKeyArr [128]byte
	copy(sharedKeyArr[:], sharedKey)

	// spec.md §8 scenario 6: the shipgate's receive-direction key derives
	// from the gate-nonce (the nonce the shipgate itself generated and
	// sent), and its send-direction key from the ship's nonce.
	recvKey := cipher.DeriveShipgateSessionKey(sharedKeyArr, gateNonce)
	sendKey := cipher.DeriveShipgateSessionKey(sharedKeyArr, shipNonce)
	recvCipher, err := cipher.NewRC4Cipher(recvKey)
	if err != nil {
		return nil, fmt.Errorf("building recv cipher: %w", err)
	}
	sendCipher, err := cipher.NewRC4Cipher(sendKey)
	if err != nil {
		return nil, fmt.Errorf("building send cipher: %w", err)
	}

	ship := Ship{
		ID:         req.keyIndex,
		KeyIndex:   req.keyIndex,
		Name:       req.name,
		MenuCode:   req.menuCode,
		GMOnly:     req.gmOnly,
		Version:    req.version,
		ExternalIP: req.externalIP,
		InternalIP: req.internalIP,
		Port:       req.port,
		Players:    req.clients,
		Games:      req.games,
	}

	return &handshakeResult{ship: ship, recvCipher: recvCipher, sendCipher: sendCipher}, nil
}

func sendRejection(conn net.Conn, opcode uint16) {
	frame := framing.EncodeFrame(clearCipher{}, gateCodec, opcode, 0, nil)
	_, _ = conn.Write(frame)
}

// seedFromEntropy draws a 32-bit seed from crypto/rand to initialize the
// per-handshake Mersenne Twister, since spec.md leaves the PRNG's own
// seeding source unspecified.
func seedFromEntropy() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}
