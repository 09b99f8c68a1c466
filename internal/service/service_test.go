//go:build test && debug

package service

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeDump(t *testing.T, dir, name string, pages ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)

	var data []byte
	for _, p := range pages {
		data = append(data, []byte(p)...)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %q: %v", path, err)
	}

	return path
}

// frame packs a message id and opcode+payload body into the
// length-prefixed wire frame spec.md §6.3 describes: 1 length byte L
// (payload = L*8 bytes, including the message id byte), then that
// payload.
func frame(msgID byte, body []byte) []byte {
	total := append([]byte{msgID}, body...)

	for len(total)%8 != 0 {
		total = append(total, 0x00)
	}

	lenByte := byte(len(total) / 8)

	return append([]byte{lenByte}, total...)
}

func cstring(s string) []byte {
	return append([]byte(s), 0x00)
}

func u32le(v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return buf[:]
}

func TestAddReferenceThenCompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	refPath := writeDump(t, dir, "ref", "RRRRRRRR")
	srcPath := writeDump(t, dir, "src", "SSSSSSSS")
	outPath := filepath.Join(dir, "out.mbcr")

	srv := New(2)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan struct{})
	go func() {
		srv.handleConn(serverConn)
		close(done)
	}()

	addBody := append([]byte{opAddReference}, cstring(refPath)...)
	addBody = append(addBody, u32le(8)...)

	sendAndExpectAck(t, clientConn, 0x01, addBody, true)

	compressBody := []byte{opCompress}
	compressBody = append(compressBody, cstring(refPath)...)
	compressBody = append(compressBody, cstring(srcPath)...)
	compressBody = append(compressBody, cstring(outPath)...)
	compressBody = append(compressBody, u32le(8)...)
	compressBody = append(compressBody, 0x00, 0x00, 0x03) // intra=0, diffing=0, inner=none

	sendAndExpectAck(t, clientConn, 0x02, compressBody, true)

	srv.Wait()

	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("expected compressed output at %q: %v", outPath, err)
	}

	clientConn.Close()
	<-done
}

func TestUnknownOpcodeIsRejected(t *testing.T) {
	srv := New(1)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan struct{})
	go func() {
		srv.handleConn(serverConn)
		close(done)
	}()

	sendAndExpectAck(t, clientConn, 0x05, []byte{0x03}, false)

	clientConn.Close()
	<-done
}

func sendAndExpectAck(t *testing.T, conn net.Conn, msgID byte, body []byte, wantAccept bool) {
	t.Helper()

	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetDeadline: %v", err)
	}

	if _, err := conn.Write(frame(msgID, body)); err != nil {
		t.Fatalf("writing frame: %v", err)
	}

	var ack [2]byte
	if _, err := readFull(conn, ack[:]); err != nil {
		t.Fatalf("reading ack: %v", err)
	}

	if ack[0] != msgID {
		t.Errorf("ack msg id = %d, want %d", ack[0], msgID)
	}

	gotAccept := ack[1] == 0x01
	if gotAccept != wantAccept {
		t.Errorf("ack accept = %v, want %v", gotAccept, wantAccept)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
