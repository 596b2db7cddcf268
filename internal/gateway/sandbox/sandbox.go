// Package sandbox is a local stand-in for the payment gateway. It accepts the
// merchant's signed form, checks the request digest and answers with the
// reverse-signed callback form the real gateway would post to surl or furl.
package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
)

var (
	ErrUnknownMerchant = errors.New("sandbox: unknown merchant key")
	ErrBadDigest       = errors.New("sandbox: request digest does not match")
	ErrMissingField    = errors.New("sandbox: required field missing")
	ErrUnknownOutcome  = errors.New("sandbox: unknown outcome")
)

// OutcomeParam on the gateway URL's query string picks the outcome of one
// payment, e.g. /_payment?outcome=failure.
const OutcomeParam = "outcome"

var requiredFields = []string{
	gateway.FieldKey,
	gateway.FieldTxnID,
	gateway.FieldAmount,
	gateway.FieldProductInfo,
	gateway.FieldFirstName,
	gateway.FieldEmail,
	gateway.FieldSuccessURL,
	gateway.FieldFailureURL,
	gateway.FieldHash,
}

// Gateway settles payments with a fixed default outcome.
type Gateway struct {
	signer   *gateway.Signer
	outcome  string
	newTxnID func() string
}

func New(signer *gateway.Signer, defaultOutcome string) (*Gateway, error) {
	if defaultOutcome == "" {
		defaultOutcome = gateway.StatusSuccess
	}
	if !knownOutcome(defaultOutcome) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, defaultOutcome)
	}
	return &Gateway{
		signer:   signer,
		outcome:  defaultOutcome,
		newTxnID: uuid.NewString,
	}, nil
}

// Complete checks a merchant request and returns where the callback goes and
// what it carries. An empty outcome uses the gateway's default.
func (g *Gateway) Complete(request gateway.Fields, outcome string) (gateway.Form, error) {
	for _, name := range requiredFields {
		if strings.TrimSpace(request[name]) == "" {
			return gateway.Form{}, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}
	if request[gateway.FieldKey] != g.signer.MerchantKey() {
		return gateway.Form{}, ErrUnknownMerchant
	}
	if !g.signer.VerifyRequest(gateway.RequestParamsFromFields(request), request[gateway.FieldHash]) {
		return gateway.Form{}, ErrBadDigest
	}

	if outcome == "" {
		outcome = g.outcome
	}
	if !knownOutcome(outcome) {
		return gateway.Form{}, fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
	}

	cb := g.signer.SignCallback(request, outcome, g.newTxnID())
	target := request[gateway.FieldFailureURL]
	if outcome == gateway.StatusSuccess {
		target = request[gateway.FieldSuccessURL]
	} else {
		cb[gateway.FieldErrorMessage] = "sandbox " + outcome
	}
	return gateway.Form{Action: target, Fields: cb}, nil
}

// Routes mounts the payment endpoint at /_payment.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/_payment", g.handlePayment)
	return r
}

func (g *Gateway) handlePayment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 32<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "unreadable form", http.StatusBadRequest)
		return
	}

	request := gateway.FieldsFromValues(r.PostForm)
	form, err := g.Complete(request, r.URL.Query().Get(OutcomeParam))
	if err != nil {
		slog.WarnContext(r.Context(), "sandbox rejected payment request",
			"order_id", request[gateway.FieldTxnID], "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slog.InfoContext(r.Context(), "sandbox settled payment",
		"order_id", form.Fields[gateway.FieldTxnID],
		"status", form.Fields[gateway.FieldStatus],
		"mihpayid", form.Fields[gateway.FieldGatewayTxnID],
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := form.Render(w); err != nil {
		slog.ErrorContext(r.Context(), "sandbox could not render callback form", "error", err)
	}
}

func knownOutcome(s string) bool {
	switch s {
	case gateway.StatusSuccess, gateway.StatusFailure, gateway.StatusPending:
		return true
	}
	return false
}
