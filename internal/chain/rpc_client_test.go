package chain

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
)

func TestAppendShortvecLen(t *testing.T) {
	cases := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, tc := range cases {
		if got := appendShortvecLen(nil, tc.n); !bytes.Equal(got, tc.want) {
			t.Errorf("appendShortvecLen(%d) = %x, want %x", tc.n, got, tc.want)
		}
	}
}

func TestTransferData(t *testing.T) {
	data := transferData(1)
	if len(data) != 12 {
		t.Fatalf("data length %d, want 12", len(data))
	}
	if data[0] != systemTransferIndex {
		t.Errorf("instruction index %d, want %d", data[0], systemTransferIndex)
	}
	if data[4] != 1 {
		t.Errorf("lamports not little-endian: %x", data)
	}

	data = transferData(9_750_000_000)
	var got uint64
	for i := 0; i < 8; i++ {
		got |= uint64(data[4+i]) << (8 * i)
	}
	if got != 9_750_000_000 {
		t.Errorf("decoded lamports %d, want 9750000000", got)
	}
}

func TestBuildTransferTx_SignatureVerifies(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	workerPub, _, _ := ed25519.GenerateKey(nil)
	treasuryPub, _, _ := ed25519.GenerateKey(nil)

	blockhash := base58.Encode(bytes.Repeat([]byte{7}, 32))
	outs := []TransferOut{
		{To: base58.Encode(workerPub), Lamports: 9_750_000_000},
		{To: base58.Encode(treasuryPub), Lamports: 250_000_000},
	}

	tx, err := buildTransferTx(priv, outs, blockhash)
	if err != nil {
		t.Fatalf("buildTransferTx: %v", err)
	}

	// One signature, then the message.
	if tx[0] != 1 {
		t.Fatalf("signature count %d, want 1", tx[0])
	}
	sig := tx[1 : 1+ed25519.SignatureSize]
	msg := tx[1+ed25519.SignatureSize:]
	if !ed25519.Verify(pub, msg, sig) {
		t.Fatal("transaction signature does not verify against funder key")
	}

	// Header: 1 signer, 0 readonly signed, 1 readonly unsigned; then 4
	// account keys (funder, two recipients, system program).
	if msg[0] != 1 || msg[1] != 0 || msg[2] != 1 {
		t.Fatalf("unexpected header %v", msg[:3])
	}
	if msg[3] != 4 {
		t.Fatalf("account key count %d, want 4", msg[3])
	}
	if !bytes.Equal(msg[4:36], pub) {
		t.Error("first account key is not the funder")
	}
	if !bytes.Equal(msg[4+3*32:4+4*32], systemProgramID) {
		t.Error("last account key is not the system program")
	}
}

func TestBuildTransferMessage_RejectsBadInput(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	good := base58.Encode(bytes.Repeat([]byte{9}, 32))
	blockhash := base58.Encode(bytes.Repeat([]byte{7}, 32))

	if _, err := buildTransferMessage(pub, []TransferOut{{To: "not-an-address", Lamports: 1}}, blockhash); err == nil {
		t.Error("expected error for malformed recipient")
	}
	if _, err := buildTransferMessage(pub, []TransferOut{{To: good, Lamports: 0}}, blockhash); err == nil {
		t.Error("expected error for zero lamports")
	}
	if _, err := buildTransferMessage(pub, []TransferOut{{To: good, Lamports: 1}}, "bogus"); err == nil {
		t.Error("expected error for malformed blockhash")
	}
}

func TestValidAddress(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	if !ValidAddress(base58.Encode(pub)) {
		t.Error("valid address rejected")
	}
	if ValidAddress("") || ValidAddress("0OIl") || ValidAddress(base58.Encode([]byte("short"))) {
		t.Error("invalid address accepted")
	}
}
