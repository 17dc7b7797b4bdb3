package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophstore/internal/common"
)

// Plaintext encodings recorded in an envelope.
const (
	EncodingText = "text"
	EncodingJSON = "json"
)

// Envelope is the self-describing result of Manager.Encrypt. Binary fields
// are base64 (standard alphabet); Timestamp is Unix milliseconds.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Algorithm  string `json:"algorithm"`
	KeyID      string `json:"keyId,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Encoding   string `json:"encoding,omitempty"`
}

// Encode renders the envelope as base64 text safe for any string store.
func (e Envelope) Encode() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ParseEnvelope reverses Envelope.Encode.
func ParseEnvelope(s string) (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope is not base64: %v", common.ErrorValidation, err)
	}

	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope is not JSON: %v", common.ErrorValidation, err)
	}
	if e.Ciphertext == "" || e.IV == "" {
		return Envelope{}, fmt.Errorf("%w: envelope misses ciphertext or iv", common.ErrorValidation)
	}
	return e, nil
}
