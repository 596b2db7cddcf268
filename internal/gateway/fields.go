// Package gateway binds the payment gateway's form contract: the request and
// callback field names, the SHA-512 request and reverse digests, and the
// auto-submitting browser form that hands the buyer over to the gateway.
package gateway

import (
	"net/url"

	"github.com/shopspring/decimal"
)

const (
	FieldKey         = "key"
	FieldTxnID       = "txnid"
	FieldAmount      = "amount"
	FieldProductInfo = "productinfo"
	FieldFirstName   = "firstname"
	FieldLastName    = "lastname"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldSuccessURL  = "surl"
	FieldFailureURL  = "furl"
	FieldHash        = "hash"

	FieldStatus            = "status"
	FieldGatewayTxnID      = "mihpayid"
	FieldAdditionalCharges = "additionalCharges"
	FieldErrorMessage      = "error_Message"
)

// Gateway-reported outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusPending = "pending"
)

// Fields is a flat set of form fields, one value per name.
type Fields map[string]string

// Values converts f to url.Values for form encoding.
func (f Fields) Values() url.Values {
	v := make(url.Values, len(f))
	for k, val := range f {
		v.Set(k, val)
	}
	return v
}

// FieldsFromValues takes the first value of each key.
func FieldsFromValues(v url.Values) Fields {
	f := make(Fields, len(v))
	for k := range v {
		f[k] = v.Get(k)
	}
	return f
}

// FormatAmount renders an amount the way the gateway expects it in both the
// form and the digest: always two decimals.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ParseAmount is the inverse of FormatAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
