package bridge

import "encoding/base64"

// EncodeForTransfer renders arbitrary bytes as standard base-64 text so they
// can cross a call boundary that only accepts strings.
func EncodeForTransfer(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeFromTransfer is the inverse of EncodeForTransfer. Malformed input is
// reported as ErrDecode instead of yielding partial bytes.
func DecodeFromTransfer(text string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, newError(ErrDecode, StageDecode, err)
	}
	return b, nil
}
