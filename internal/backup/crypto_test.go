package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	plain := []byte("SQLite format 3\x00 ledger pages")
	sealed, err := seal(plain, "hunter2")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatal("sealed output contains plaintext")
	}
	got, err := open(sealed, "hunter2")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("got %q, want %q", got, plain)
	}
}

func TestSealUsesFreshSalt(t *testing.T) {
	a, _ := seal([]byte("x"), "pw")
	b, _ := seal([]byte("x"), "pw")
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("two seals share a salt")
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := seal([]byte("data"), "right")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := open(sealed, "wrong"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestOpenTampered(t *testing.T) {
	sealed, _ := seal([]byte("data"), "pw")
	sealed[len(sealed)-1] ^= 0xff
	if _, err := open(sealed, "pw"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestOpenTooSmall(t *testing.T) {
	if _, err := open([]byte("short"), "pw"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestSealEmptyPassphrase(t *testing.T) {
	if _, err := seal([]byte("data"), ""); err == nil {
		t.Error("expected error for empty passphrase")
	}
}
