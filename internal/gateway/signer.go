package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrMissingCredentials is returned when the merchant key or salt is empty.
var ErrMissingCredentials = errors.New("gateway: merchant key and salt are required")

// Signer computes request digests and verifies callback digests with the
// merchant's key and salt. The salt never leaves the server.
type Signer struct {
	key  string
	salt string
}

func NewSigner(key, salt string) (*Signer, error) {
	if key == "" || salt == "" {
		return nil, ErrMissingCredentials
	}
	return &Signer{key: key, salt: salt}, nil
}

// MerchantKey is the public merchant identifier sent in the form.
func (s *Signer) MerchantKey() string { return s.key }

// RequestParams are the values covered by the request digest.
type RequestParams struct {
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
}

// RequestHash is sha512(key|txnid|amount|productinfo|firstname|email|udf1..udf5||||||salt).
func (s *Signer) RequestHash(p RequestParams) string {
	parts := []string{s.key, p.TxnID, p.Amount, p.ProductInfo, p.FirstName, p.Email}
	// udf1..udf5 followed by five reserved slots, all empty.
	parts = append(parts, make([]string, 10)...)
	parts = append(parts, s.salt)
	return digest(parts)
}

// ResponseParams are the callback values covered by the reverse digest.
type ResponseParams struct {
	Status            string
	TxnID             string
	Amount            string
	ProductInfo       string
	FirstName         string
	Email             string
	AdditionalCharges string
}

// ResponseParamsFromFields extracts the reverse-digest inputs from a callback.
func ResponseParamsFromFields(f Fields) ResponseParams {
	return ResponseParams{
		Status:            f[FieldStatus],
		TxnID:             f[FieldTxnID],
		Amount:            f[FieldAmount],
		ProductInfo:       f[FieldProductInfo],
		FirstName:         f[FieldFirstName],
		Email:             f[FieldEmail],
		AdditionalCharges: f[FieldAdditionalCharges],
	}
}

// ResponseHash is the reverse digest:
// sha512([additionalCharges|]salt|status||||||udf5..udf1|email|firstname|productinfo|amount|txnid|key).
func (s *Signer) ResponseHash(p ResponseParams) string {
	var parts []string
	if p.AdditionalCharges != "" {
		parts = append(parts, p.AdditionalCharges)
	}
	parts = append(parts, s.salt, p.Status)
	parts = append(parts, make([]string, 10)...)
	parts = append(parts, p.Email, p.FirstName, p.ProductInfo, p.Amount, p.TxnID, s.key)
	return digest(parts)
}

// VerifyResponse recomputes the reverse digest and compares it in constant time.
func (s *Signer) VerifyResponse(p ResponseParams, got string) bool {
	if got == "" {
		return false
	}
	want := s.ResponseHash(p)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(got))) == 1
}

// VerifyRequest checks a request digest; the sandbox gateway uses it.
func (s *Signer) VerifyRequest(p RequestParams, got string) bool {
	if got == "" {
		return false
	}
	want := s.RequestHash(p)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(got))) == 1
}

func digest(parts []string) string {
	sum := sha512.Sum512([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
