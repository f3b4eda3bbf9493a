package backupio

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"io"

	"github.com/cuemby/sealedkv/kverrors"
)

// WriteRecord appends one `hex(key) "," hex(value) ";"` record to w.
func WriteRecord(w io.Writer, key, value []byte) error {
	_, err := io.WriteString(w, hex.EncodeToString(key)+","+hex.EncodeToString(value)+";")
	if err != nil {
		return kverrors.New(kverrors.IOError, "", err)
	}
	return nil
}

// ReadRecord reads and decodes one record from br, returning io.EOF once the
// stream is exhausted with no further records pending.
func ReadRecord(br *bufio.Reader) (key, value []byte, err error) {
	raw, err := br.ReadBytes(';')
	if err != nil {
		if err == io.EOF && len(raw) == 0 {
			return nil, nil, io.EOF
		}
		return nil, nil, kverrors.New(kverrors.ConversionError, "truncated backup record", err)
	}

	raw = raw[:len(raw)-1] // drop trailing ';'
	comma := bytes.IndexByte(raw, ',')
	if comma < 0 {
		return nil, nil, kverrors.New(kverrors.ConversionError, "malformed backup record", nil)
	}

	key, err = hex.DecodeString(string(raw[:comma]))
	if err != nil {
		return nil, nil, kverrors.New(kverrors.ConversionError, "invalid hex key", err)
	}
	value, err = hex.DecodeString(string(raw[comma+1:]))
	if err != nil {
		return nil, nil, kverrors.New(kverrors.ConversionError, "invalid hex value", err)
	}
	return key, value, nil
}
