package osdg

import (
	"net"
	"testing"
	"time"

	"github.com/albert-salai/opensdg-go/boxcrypto"
	"github.com/albert-salai/opensdg-go/conn"
)

func mustKeyPair(t *testing.T) boxcrypto.KeyPair {
	t.Helper()
	kp, err := boxcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

// listenOnce starts a one-shot TCP listener and returns its address; the
// accepted connection (if any) is handed to accepted.
func listenOnce(t *testing.T) (addr string, accepted chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	accepted = make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		ln.Close()
		if err == nil {
			accepted <- c
		} else {
			close(accepted)
		}
	}()
	return ln.Addr().String(), accepted
}

func TestInitShutdownIsIdempotentToCallers(t *testing.T) {
	if err := Init(Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(Config{}); err == nil {
		t.Fatalf("expected a second Init to fail")
	}
	Shutdown()
	// Shutdown again should be a harmless no-op.
	Shutdown()
}

func TestConnectToGridSendsTell(t *testing.T) {
	if err := Init(Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Shutdown()

	addr, accepted := listenOnce(t)

	cn := Create(mustKeyPair(t))
	if err := cn.ConnectToGrid([]string{addr}); err != nil {
		t.Fatalf("ConnectToGrid: %v", err)
	}

	var serverSide net.Conn
	select {
	case c := <-accepted:
		serverSide = c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for accept")
	}
	defer serverSide.Close()

	serverSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 8)
	if _, err := readFull(serverSide, buf); err != nil {
		t.Fatalf("read TELL: %v", err)
	}
	if string(buf[4:8]) != "TELL" {
		t.Fatalf("command = %q, want TELL", buf[4:8])
	}
}

func readFull(r net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func TestConnectToGridFailsWithoutInit(t *testing.T) {
	cn := Create(mustKeyPair(t))
	if err := cn.ConnectToGrid([]string{"127.0.0.1:1"}); err == nil {
		t.Fatalf("expected an error when osdg has not been Init'd")
	}
}

func TestKeyRoundTrip(t *testing.T) {
	priv, err := CreatePrivateKey()
	if err != nil {
		t.Fatalf("CreatePrivateKey: %v", err)
	}
	pub := CalcPublicKey(priv)

	hexKey := BinToHex(pub[:])
	decoded, err := KeyFromHex(hexKey)
	if err != nil {
		t.Fatalf("KeyFromHex: %v", err)
	}
	if decoded != pub {
		t.Fatalf("round trip mismatch: got %x, want %x", decoded, pub)
	}
}

func TestHexToBinRejectsGarbage(t *testing.T) {
	if _, err := HexToBin("not-hex!!"); err == nil {
		t.Fatalf("expected an error decoding invalid hex")
	}
}

func TestDestroyReachesTerminalStatus(t *testing.T) {
	if err := Init(Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Shutdown()

	addr, accepted := listenOnce(t)

	cn := Create(mustKeyPair(t))
	if err := cn.ConnectToGrid([]string{addr}); err != nil {
		t.Fatalf("ConnectToGrid: %v", err)
	}

	select {
	case c := <-accepted:
		defer c.Close()
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for accept")
	}

	cn.Destroy()
	status := cn.Wait()
	if status != conn.StatusClosed && status != conn.StatusFailed {
		t.Fatalf("status = %s, want closed or failed", status)
	}
}
