package wire

import "testing"

func TestBigEndianRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	StoreU16BE(buf, 0xBEEF)
	if got := LoadU16BE(buf); got != 0xBEEF {
		t.Fatalf("u16 round trip: got %x", got)
	}

	StoreU64BE(buf, 0x0102030405060708)
	if got := LoadU64BE(buf); got != 0x0102030405060708 {
		t.Fatalf("u64 round trip: got %x", got)
	}
}

func TestBuildShortNonceMonotonic(t *testing.T) {
	seen := map[[NonceLen]byte]struct{}{}
	for i := uint64(1); i <= 10000; i++ {
		n := BuildShortNonce(ClientMesgNoncePrefix, i)
		if _, ok := seen[n]; ok {
			t.Fatalf("nonce reuse at counter %d", i)
		}
		seen[n] = struct{}{}

		tail := n[ShortNoncePrefixLen:]
		if LoadU64BE(tail) != i {
			t.Fatalf("nonce tail mismatch: want %d got %d", i, LoadU64BE(tail))
		}
	}
}

func TestBuildLongNonce(t *testing.T) {
	tail := make([]byte, 16)
	for i := range tail {
		tail[i] = byte(i)
	}
	n := BuildLongNonce(VouchLongNoncePrefix, tail)
	if string(n[:LongNoncePrefixLen]) != "CurveCPV" {
		t.Fatalf("unexpected prefix: %q", n[:LongNoncePrefixLen])
	}
}

func TestZeroPad(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	ZeroPad(buf, 3)
	want := []byte{0, 0, 0, 4, 5}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("ZeroPad mismatch at %d: got %d want %d", i, buf[i], want[i])
		}
	}
}
