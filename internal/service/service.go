// Package service implements the command socket and request dispatcher
// from spec.md §6.3, grounded on socket_api.cpp's handle_client_connection
// framing and request_handler.cpp's opcode dispatch — expressed with
// net.Listener/net.Conn instead of a hand-rolled epoll loop (Go's net
// package already multiplexes file descriptors internally) and
// github.com/sourcegraph/conc/pool instead of boost::asio::thread_pool.
package service

import (
	"encoding/binary"
	"io"
	"net"
	"os"

	"github.com/sourcegraph/conc/pool"

	"github.com/mbrengel/memscrimper/internal/artifact"
	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/errors"
	"github.com/mbrengel/memscrimper/internal/innercompress"
	"github.com/mbrengel/memscrimper/internal/logging"
	"github.com/mbrengel/memscrimper/internal/pagestore"
	"github.com/mbrengel/memscrimper/internal/refcache"
)

const (
	opAddReference    = 0x00
	opCompress        = 0x01
	opDecompress      = 0x02
	opDeleteReference = 0x04
)

// Server owns the reference-dump cache and worker pool backing one
// command socket, matching request_handler's refdumps_ + thread_pool
// pairing.
type Server struct {
	cache *refcache.Cache
	pool  *pool.Pool
}

// New returns a Server whose worker pool is bounded to threadCount
// concurrent jobs.
func New(threadCount int) *Server {
	return &Server{
		cache: refcache.New(),
		pool:  pool.New().WithMaxGoroutines(threadCount),
	}
}

// Listen binds a Unix domain socket at socketPath, removing any stale
// socket file left behind by a previous run, and serves connections
// until the listener is closed.
func (s *Server) Listen(socketPath string) error {
	log := logging.Logger()

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing stale socket %q", socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", socketPath)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	log.Info().Str("path", socketPath).Msg("starting service")

	for {
		conn, err := listener.Accept()
		if err != nil {
			return errors.Wrapf(err, "accepting on %q", socketPath)
		}

		go s.handleConn(conn)
	}
}

// Wait blocks until every job submitted to the worker pool has
// finished, for orderly shutdown.
func (s *Server) Wait() {
	s.pool.Wait()
}

// handleConn serves frames from one client connection until it closes
// or sends a malformed frame, mirroring handle_client_connection's
// per-socket read loop (one frame per call there; here, one frame per
// loop iteration of the same connection).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	log := logging.Logger()

	for {
		msgID, body, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Msg("closing connection after frame read error")
			}
			return
		}

		if len(body) == 0 {
			writeAck(conn, msgID, false)
			continue
		}

		opcode := body[0]
		payload := body[1:]

		if !validOpcode(opcode) {
			log.Error().Uint8("opcode", opcode).Msg("got request: unknown opcode")
			writeAck(conn, msgID, false)
			continue
		}

		writeAck(conn, msgID, true)

		s.pool.Go(func() {
			s.dispatch(opcode, payload)
		})
	}
}

func validOpcode(opcode byte) bool {
	switch opcode {
	case opAddReference, opCompress, opDecompress, opDeleteReference:
		return true
	default:
		return false
	}
}

// dispatch runs one request's handler on the worker pool. Per
// spec.md §7, a per-request failure here is logged and discarded —
// the client has already received its accept/reject ACK for the
// framing, and the wire protocol has no channel for reporting
// job-level failure after the fact, matching request_handler.cpp's
// fire-and-forget boost::asio::post.
func (s *Server) dispatch(opcode byte, payload []byte) {
	log := logging.Logger()

	var err error
	switch opcode {
	case opAddReference:
		err = s.addReference(payload)
	case opCompress:
		err = s.compress(payload)
	case opDecompress:
		err = s.decompress(payload)
	case opDeleteReference:
		err = s.deleteReference(payload)
	}

	if err != nil {
		log.Error().Err(err).Uint8("opcode", opcode).Msg("request failed")
	}
}

func (s *Server) addReference(payload []byte) error {
	path, rest, err := cutCString(payload)
	if err != nil {
		return errors.Wrap(err)
	}

	pageSize, _, err := cutUint32LE(rest)
	if err != nil {
		return errors.Wrap(err)
	}

	return errors.Wrap(s.cache.Add(path, pageSize))
}

func (s *Server) deleteReference(payload []byte) error {
	path, _, err := cutCString(payload)
	if err != nil {
		return errors.Wrap(err)
	}

	s.cache.Remove(path)
	return nil
}

func (s *Server) compress(payload []byte) error {
	refPath, rest, err := cutCString(payload)
	if err != nil {
		return errors.Wrap(err)
	}

	srcPath, rest, err := cutCString(rest)
	if err != nil {
		return errors.Wrap(err)
	}

	outPath, rest, err := cutCString(rest)
	if err != nil {
		return errors.Wrap(err)
	}

	pageSize, rest, err := cutUint32LE(rest)
	if err != nil {
		return errors.Wrap(err)
	}

	intra, rest, err := cutBool(rest)
	if err != nil {
		return errors.Wrap(err)
	}

	diffing, rest, err := cutBool(rest)
	if err != nil {
		return errors.Wrap(err)
	}

	inner, err := parseWireInner(rest)
	if err != nil {
		return errors.Wrap(err)
	}

	ref, err := s.cache.Get(refPath, pageSize)
	if err != nil {
		return errors.Wrapf(err, "loading reference dump %q", refPath)
	}

	src, err := pagestore.Load(srcPath, pageSize)
	if err != nil {
		return errors.Wrapf(err, "loading source dump %q", srcPath)
	}

	return artifact.Compress(ref, src, outPath, artifact.Options{
		Inner:   inner,
		Diffing: diffing,
		Intra:   intra,
	})
}

func (s *Server) decompress(payload []byte) error {
	inPath, rest, err := cutCString(payload)
	if err != nil {
		return errors.Wrap(err)
	}

	outPath, _, err := cutCString(rest)
	if err != nil {
		return errors.Wrap(err)
	}

	return artifact.Decompress(inPath, outPath, s.cache.Get)
}

// parseWireInner maps the wire protocol's opcode-0x01 inner-compression
// byte, which uses its own enumeration order (spec.md §6.3:
// 0=7zip, 1=gzip, 2=bzip2, 3=none), onto innercompress.Kind.
func parseWireInner(rest []byte) (innercompress.Kind, error) {
	b, _, err := cutByte(rest)
	if err != nil {
		return innercompress.None, errors.Wrap(err)
	}

	switch b {
	case 0:
		return innercompress.Zip7, nil
	case 1:
		return innercompress.Gzip, nil
	case 2:
		return innercompress.Bzip2, nil
	case 3:
		return innercompress.None, nil
	default:
		return innercompress.None, codecerrors.NewConfiguration("invalid inner compression byte %d", b)
	}
}

func cutCString(b []byte) (string, []byte, error) {
	for i, c := range b {
		if c == 0x00 {
			return string(b[:i]), b[i+1:], nil
		}
	}
	return "", nil, codecerrors.NewFormatMismatch("payload missing NUL terminator")
}

func cutUint32LE(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, codecerrors.NewFormatMismatch("payload too short for u32")
	}
	return binary.LittleEndian.Uint32(b[:4]), b[4:], nil
}

func cutByte(b []byte) (byte, []byte, error) {
	if len(b) < 1 {
		return 0, nil, codecerrors.NewFormatMismatch("payload too short for a byte")
	}
	return b[0], b[1:], nil
}

func cutBool(b []byte) (bool, []byte, error) {
	v, rest, err := cutByte(b)
	if err != nil {
		return false, nil, errors.Wrap(err)
	}
	return v == 0x01, rest, nil
}

// readFrame reads one length-prefixed request frame: a 1-byte length L
// whose payload is L·8 bytes, the first of which is the message id.
func readFrame(conn net.Conn) (msgID byte, body []byte, err error) {
	var lenByte [1]byte
	if _, err := io.ReadFull(conn, lenByte[:]); err != nil {
		return 0, nil, errors.Wrap(err)
	}

	msglen := int(lenByte[0]) * 8
	if msglen == 0 {
		return 0, nil, codecerrors.NewFormatMismatch("empty request frame")
	}

	buf := make([]byte, msglen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return 0, nil, errors.Wrap(err)
	}

	return buf[0], buf[1:], nil
}

func writeAck(conn net.Conn, msgID byte, accept bool) {
	ack := byte(0x00)
	if accept {
		ack = 0x01
	}

	conn.Write([]byte{msgID, ack})
}
