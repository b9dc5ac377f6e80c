package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const rowFormatVersionCurrent = 1

// ErrCorruptRow is returned when a stored outstanding row cannot be decoded.
var ErrCorruptRow = errors.New("ledger row corrupt")

// Encode serializes the outstanding row. The jti is not part of the row; it
// is carried by the Redis key.
func Encode(e *Entry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(rowFormatVersionCurrent)

	if len(e.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(e.UserID)))
	buf.WriteString(e.UserID)

	if len(e.TokenType) > 255 {
		return nil, errors.New("token type too long")
	}
	buf.WriteByte(byte(len(e.TokenType)))
	buf.WriteString(e.TokenType)

	if err := binary.Write(&buf, binary.BigEndian, e.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, e.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a row produced by [Encode]. Every failure wraps ErrCorruptRow.
func Decode(data []byte) (*Entry, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRow, err)
	}
	if version != rowFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported row schema version %d", ErrCorruptRow, version)
	}

	e := &Entry{}

	userID, err := readShortString(reader)
	if err != nil {
		return nil, err
	}
	e.UserID = userID

	tokenType, err := readShortString(reader)
	if err != nil {
		return nil, err
	}
	e.TokenType = tokenType

	if err := binary.Read(reader, binary.BigEndian, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRow, err)
	}
	if err := binary.Read(reader, binary.BigEndian, &e.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRow, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrCorruptRow)
	}

	return e, nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptRow, err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptRow, err)
	}
	return string(b), nil
}
