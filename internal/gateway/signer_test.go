package gateway

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner("gtKFFx", "eCwWELxi")
	require.NoError(t, err)
	return s
}

func TestNewSignerRequiresCredentials(t *testing.T) {
	_, err := NewSigner("", "salt")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewSigner("key", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestRequestHashLayout(t *testing.T) {
	s := newTestSigner(t)
	p := RequestParams{TxnID: "ORD-1", Amount: "10.00", ProductInfo: "Mug", FirstName: "Asha", Email: "asha@example.com"}

	want := digest([]string{"gtKFFx|ORD-1|10.00|Mug|Asha|asha@example.com|||||||||||eCwWELxi"})
	assert.Equal(t, want, s.RequestHash(p))
	assert.Len(t, s.RequestHash(p), 128)
}

func TestResponseHashLayout(t *testing.T) {
	s := newTestSigner(t)
	p := ResponseParams{Status: "success", TxnID: "ORD-1", Amount: "10.00", ProductInfo: "Mug", FirstName: "Asha", Email: "asha@example.com"}

	want := digest([]string{"eCwWELxi|success|||||||||||asha@example.com|Asha|Mug|10.00|ORD-1|gtKFFx"})
	assert.Equal(t, want, s.ResponseHash(p))

	p.AdditionalCharges = "5.00"
	withCharges := digest([]string{"5.00|eCwWELxi|success|||||||||||asha@example.com|Asha|Mug|10.00|ORD-1|gtKFFx"})
	assert.Equal(t, withCharges, s.ResponseHash(p))
}

func TestVerifyResponse(t *testing.T) {
	s := newTestSigner(t)
	amount := FormatAmount(decimal.RequireFromString("10300"))
	require.Equal(t, "10300.00", amount)

	p := ResponseParams{Status: StatusSuccess, TxnID: "ORD-42", Amount: amount, ProductInfo: "Order ORD-42", FirstName: "Ravi", Email: "ravi@example.com"}
	good := s.ResponseHash(p)

	tests := []struct {
		name   string
		mutate func(*ResponseParams)
		hash   string
		ok     bool
	}{
		{name: "untouched", mutate: func(*ResponseParams) {}, hash: good, ok: true},
		{name: "uppercase hex", mutate: func(*ResponseParams) {}, hash: strings.ToUpper(good), ok: true},
		{name: "amount tampered", mutate: func(p *ResponseParams) { p.Amount = "1.00" }, hash: good, ok: false},
		{name: "status flipped", mutate: func(p *ResponseParams) { p.Status = StatusFailure }, hash: good, ok: false},
		{name: "empty hash", mutate: func(*ResponseParams) {}, hash: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := p
			tt.mutate(&cp)
			assert.Equal(t, tt.ok, s.VerifyResponse(cp, tt.hash))
		})
	}
}

func TestRequestDigestDoesNotVerifyAsResponse(t *testing.T) {
	s := newTestSigner(t)
	req := RequestParams{TxnID: "ORD-1", Amount: "1.00", ProductInfo: "x", FirstName: "A", Email: "a@b.co"}
	resp := ResponseParams{Status: StatusSuccess, TxnID: "ORD-1", Amount: "1.00", ProductInfo: "x", FirstName: "A", Email: "a@b.co"}

	assert.False(t, s.VerifyResponse(resp, s.RequestHash(req)))
	assert.True(t, s.VerifyRequest(req, s.RequestHash(req)))
}

func TestFormRender(t *testing.T) {
	f := Form{
		Action: "https://test.gateway.example/_payment",
		Fields: Fields{FieldTxnID: "ORD-1", FieldProductInfo: `Mug "large" <b>`},
	}

	var buf bytes.Buffer
	require.NoError(t, f.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, `action="https://test.gateway.example/_payment"`)
	assert.Contains(t, out, `name="txnid" value="ORD-1"`)
	assert.NotContains(t, out, "<b>")
	assert.Less(t, strings.Index(out, `name="productinfo"`), strings.Index(out, `name="txnid"`))
}

func TestSignCallbackVerifies(t *testing.T) {
	s := newTestSigner(t)
	request := Fields{
		FieldTxnID:       "ORD-1",
		FieldAmount:      "10300.00",
		FieldProductInfo: "Silk saree and more",
		FieldFirstName:   "Asha",
		FieldLastName:    "Rao",
		FieldEmail:       "asha@example.com",
	}

	cb := s.SignCallback(request, StatusSuccess, "mih-1")

	assert.Equal(t, "ORD-1", cb[FieldTxnID])
	assert.Equal(t, "mih-1", cb[FieldGatewayTxnID])
	assert.True(t, s.VerifyResponse(ResponseParamsFromFields(cb), cb[FieldHash]))

	cb[FieldStatus] = StatusFailure
	assert.False(t, s.VerifyResponse(ResponseParamsFromFields(cb), cb[FieldHash]))
}

func TestRequestParamsFromFields(t *testing.T) {
	s := newTestSigner(t)
	p := RequestParams{TxnID: "ORD-1", Amount: "1.00", ProductInfo: "x", FirstName: "A", Email: "a@b.co"}
	f := Fields{
		FieldTxnID:       p.TxnID,
		FieldAmount:      p.Amount,
		FieldProductInfo: p.ProductInfo,
		FieldFirstName:   p.FirstName,
		FieldEmail:       p.Email,
	}
	assert.True(t, s.VerifyRequest(RequestParamsFromFields(f), s.RequestHash(p)))
}
