package gateway

// RequestParamsFromFields extracts the request-digest inputs from a form the
// merchant posted.
func RequestParamsFromFields(f Fields) RequestParams {
	return RequestParams{
		TxnID:       f[FieldTxnID],
		Amount:      f[FieldAmount],
		ProductInfo: f[FieldProductInfo],
		FirstName:   f[FieldFirstName],
		Email:       f[FieldEmail],
	}
}

// SignCallback builds the callback a gateway returns for a request form,
// carrying status and the gateway's own transaction id, signed with the
// reverse digest.
func (s *Signer) SignCallback(request Fields, status, gatewayTxnID string) Fields {
	cb := Fields{
		FieldStatus:       status,
		FieldTxnID:        request[FieldTxnID],
		FieldAmount:       request[FieldAmount],
		FieldProductInfo:  request[FieldProductInfo],
		FieldFirstName:    request[FieldFirstName],
		FieldLastName:     request[FieldLastName],
		FieldEmail:        request[FieldEmail],
		FieldPhone:        request[FieldPhone],
		FieldKey:          s.key,
		FieldGatewayTxnID: gatewayTxnID,
	}
	cb[FieldHash] = s.ResponseHash(ResponseParamsFromFields(cb))
	return cb
}
