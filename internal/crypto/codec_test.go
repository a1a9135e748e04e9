package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/amqadri/nisab-keeper/internal/errs"
)

func testCodec(t *testing.T) *AEADCodec {
	t.Helper()
	key, err := RandBytes(KeySize)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	codec, err := NewAEADCodec(key)
	if err != nil {
		t.Fatalf("NewAEADCodec: %v", err)
	}
	return codec
}

func TestNewAEADCodecRejectsBadKeySize(t *testing.T) {
	for _, n := range []int{0, 16, KeySize - 1, KeySize + 1} {
		if _, err := NewAEADCodec(make([]byte, n)); err == nil {
			t.Errorf("key size %d accepted", n)
		}
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := testCodec(t)

	for _, plaintext := range [][]byte{
		[]byte("150000"),
		[]byte(""),
		[]byte(`[{"name":"gold","value":250000}]`),
		bytes.Repeat([]byte{0xff}, 4096),
	} {
		ct, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		got, err := codec.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	codec := testCodec(t)

	ct1, err := codec.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct2, err := codec.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(ct1, ct2) {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	codec := testCodec(t)

	ct, err := codec.Encrypt([]byte("sensitive value"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct[len(ct)-1] ^= 0x01

	if _, err := codec.Decrypt(ct); !errors.Is(err, errs.ErrDecrypt) {
		t.Errorf("tampered ciphertext: got %v, want errs.ErrDecrypt", err)
	}
}

func TestDecryptShortCiphertext(t *testing.T) {
	codec := testCodec(t)

	if _, err := codec.Decrypt([]byte("short")); !errors.Is(err, errs.ErrDecrypt) {
		t.Errorf("short ciphertext: got %v, want errs.ErrDecrypt", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	ct, err := testCodec(t).Encrypt([]byte("sensitive value"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := testCodec(t).Decrypt(ct); !errors.Is(err, errs.ErrDecrypt) {
		t.Errorf("wrong key: got %v, want errs.ErrDecrypt", err)
	}
}
