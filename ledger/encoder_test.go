package ledger

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99})
	if err == nil || !strings.Contains(err.Error(), "unsupported row schema version") {
		t.Fatalf("expected unsupported schema version error, got %v", err)
	}
	if !errors.Is(err, ErrCorruptRow) {
		t.Fatalf("expected ErrCorruptRow, got %v", err)
	}
}

func TestEncodeRejectsLongUserID(t *testing.T) {
	if _, err := Encode(&Entry{UserID: strings.Repeat("u", 256)}); err == nil {
		t.Fatal("expected long userID to be rejected")
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Encode(&Entry{UserID: "u", TokenType: "refresh", CreatedAt: 1, ExpiresAt: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(append(data, 0)); !errors.Is(err, ErrCorruptRow) {
		t.Fatalf("expected trailing bytes rejected, got %v", err)
	}
}

// FuzzRowDecode exercises the outstanding row decoder with arbitrary inputs.
// Goal: no panics; every failure is ErrCorruptRow.
func FuzzRowDecode(f *testing.F) {
	encoded, err := Encode(&Entry{
		UserID:    "user1",
		TokenType: "sliding",
		CreatedAt: 1700000000,
		ExpiresAt: 1700086400,
	})
	if err == nil {
		f.Add(encoded)
		f.Add(encoded[:5])
	}
	f.Add([]byte{})
	f.Add([]byte{1})
	f.Add([]byte{1, 255})
	f.Add([]byte{255, 255, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		e, err := Decode(data)
		if err != nil {
			if !errors.Is(err, ErrCorruptRow) {
				t.Fatalf("expected ErrCorruptRow, got %v", err)
			}
			return
		}
		if e == nil {
			t.Fatal("Decode returned nil entry without error")
		}
		again, err := Encode(e)
		if err != nil {
			t.Fatalf("re-encode decoded row: %v", err)
		}
		if string(again) != string(data) {
			t.Fatal("decoded row did not re-encode to the same bytes")
		}
	})
}
