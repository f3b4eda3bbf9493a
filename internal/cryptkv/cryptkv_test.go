package cryptkv

import (
	"bytes"
	"testing"

	"github.com/cuemby/sealedkv/kverrors"
)

func TestWrapUnwrapDEKRoundTrip(t *testing.T) {
	dek, err := GenerateDEK()
	if err != nil {
		t.Fatalf("GenerateDEK: %v", err)
	}

	blob, err := WrapDEK("correct horse battery staple 42!", dek)
	if err != nil {
		t.Fatalf("WrapDEK: %v", err)
	}

	got, err := UnwrapDEK("correct horse battery staple 42!", blob)
	if err != nil {
		t.Fatalf("UnwrapDEK: %v", err)
	}
	if !bytes.Equal(got, dek) {
		t.Fatalf("unwrapped DEK mismatch")
	}
}

func TestUnwrapDEKWrongPassphrase(t *testing.T) {
	dek, _ := GenerateDEK()
	blob, _ := WrapDEK("right-passphrase", dek)

	_, err := UnwrapDEK("wrong-passphrase", blob)
	if !kverrors.Is(err, kverrors.WrongPassword) {
		t.Fatalf("expected WrongPassword, got %v", err)
	}
}

func TestUnwrapDEKMalformedBlob(t *testing.T) {
	_, err := UnwrapDEK("whatever", []byte("too-short"))
	if !kverrors.Is(err, kverrors.WrongPassword) {
		t.Fatalf("expected WrongPassword, got %v", err)
	}
}

func TestEncryptDecryptValueRoundTrip(t *testing.T) {
	dek, _ := GenerateDEK()
	plaintext := []byte("sealedkv test value")

	envelope, err := EncryptValue(dek, plaintext)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	got, err := DecryptValue(dek, envelope)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted value mismatch: got %q want %q", got, plaintext)
	}
}

func TestDecryptValueTamperedEnvelope(t *testing.T) {
	dek, _ := GenerateDEK()
	envelope, _ := EncryptValue(dek, []byte("tamper me"))
	envelope[len(envelope)-1] ^= 0xFF

	_, err := DecryptValue(dek, envelope)
	if !kverrors.Is(err, kverrors.FailedToDecryptData) {
		t.Fatalf("expected FailedToDecryptData, got %v", err)
	}
}

func TestDecryptValueWrongDEK(t *testing.T) {
	dek1, _ := GenerateDEK()
	dek2, _ := GenerateDEK()
	envelope, _ := EncryptValue(dek1, []byte("secret"))

	_, err := DecryptValue(dek2, envelope)
	if !kverrors.Is(err, kverrors.FailedToDecryptData) {
		t.Fatalf("expected FailedToDecryptData, got %v", err)
	}
}

func TestTwoEncryptionsOfSameValueDiffer(t *testing.T) {
	dek, _ := GenerateDEK()
	plaintext := []byte("same plaintext twice")

	a, _ := EncryptValue(dek, plaintext)
	b, _ := EncryptValue(dek, plaintext)
	if bytes.Equal(a, b) {
		t.Fatalf("expected distinct nonces to produce distinct ciphertexts")
	}
}
