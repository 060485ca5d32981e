package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/query"
	"github.com/ethgate/gateway/signer"
)

// handleSign dispatches the signer request union: sign-raw-tx and
// sign-tx-call travel through the signing pipeline so their nonce and gas
// price are seeded from the shared caches; every other kind is served
// directly against the signer.
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}

	var env requestEnvelope
	if err := decodeJSON(body, &env); err != nil {
		mapError(err).Write(w)
		return
	}

	req, err := s.decodeRequest(env)
	if err != nil {
		mapError(err).Write(w)
		return
	}

	if req.Kind == signer.KindGetTxStatus {
		s.handleTxStatus(w, r, req.TxHash)
		return
	}

	if req.Kind == signer.KindSignRawTx || req.Kind == signer.KindSignTxCall {
		s.handleSignAndBroadcast(w, r, req)
		return
	}

	resp, err := s.signer.Serve(req)
	if err != nil {
		mapError(err).Write(w)
		return
	}
	httpWriteJSON(w, toResponseWire(resp))
}

// handleSignAndBroadcast validates and encodes req, then routes the
// resulting transaction through the pipeline so it is seeded with a fresh
// nonce and gas price, signed and broadcast in submission order.
func (s *Server) handleSignAndBroadcast(w http.ResponseWriter, r *http.Request, req signer.Request) {
	if s.pipeline == nil {
		ErrGenericInternalServerError.Withf("signing pipeline not configured").Write(w)
		return
	}
	tx, err := s.signer.Prepare(req)
	if err != nil {
		mapError(err).Write(w)
		return
	}
	raw, hash, err := s.pipeline.Submit(r.Context(), req.Kind, tx)
	if err != nil {
		mapError(err).Write(w)
		return
	}
	httpWriteJSON(w, responseWire{Kind: req.Kind, RawTx: raw, Hash: &hash})
}

// txStatusResponse carries the pending and mined arms of the three-way
// null | pending | mined status shape; the "never seen" arm is written as a
// bare JSON null instead.
type txStatusResponse struct {
	Pending *struct{}        `json:"pending,omitempty"`
	Mined   *minedTxResponse `json:"mined,omitempty"`
}

type minedTxResponse struct {
	BlockNumber string  `json:"blockNumber"`
	BlockHash   string  `json:"blockHash"`
	Execution   *string `json:"execution"`
}

// handleTxStatus reports whether hash is unseen, pending or mined, per
// eth_getTransactionReceipt (authoritative once non-null) falling back to
// eth_getTransactionByHash to distinguish "pending" from "never seen".
func (s *Server) handleTxStatus(w http.ResponseWriter, r *http.Request, hash common.Hash) {
	if s.client == nil {
		ErrGenericInternalServerError.Withf("node client not configured").Write(w)
		return
	}

	receipt, err := s.client.GetTransactionReceipt(r.Context(), hash)
	if err != nil {
		mapError(err).Write(w)
		return
	}
	if receipt != nil {
		var execution *string
		if e := receipt.Execution(); e != "" {
			execution = &e
		}
		httpWriteJSON(w, txStatusResponse{Mined: &minedTxResponse{
			BlockNumber: receipt.BlockNumber.String(),
			BlockHash:   receipt.BlockHash.Hex(),
			Execution:   execution,
		}})
		return
	}

	info, err := s.client.GetTransactionByHash(r.Context(), hash)
	if err != nil {
		mapError(err).Write(w)
		return
	}
	if info == nil {
		httpWriteJSON(w, nil)
		return
	}
	httpWriteJSON(w, txStatusResponse{Pending: &struct{}{}})
}

// handleEvents answers a get-events query: merge the request's matchers
// into a single filter, run it against the node and return every matching
// log's rendered template output.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		ErrGenericInternalServerError.Withf("event query service not configured").Write(w)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}

	var req eventsRequest
	if err := decodeJSON(body, &req); err != nil {
		mapError(err).Write(w)
		return
	}

	matchers, err := decodeMatchers(req.Matchers)
	if err != nil {
		mapError(err).Write(w)
		return
	}
	from, err := parseBlockID(req.FromBlock)
	if err != nil {
		mapError(err).Write(w)
		return
	}
	to, err := parseBlockID(req.ToBlock)
	if err != nil {
		mapError(err).Write(w)
		return
	}

	rendered, err := s.query.Query(r.Context(), matchers, from, to)
	if err != nil {
		mapError(err).Write(w)
		return
	}
	httpWriteJSON(w, rendered)
}

// mapError translates an internal package error into the HTTP-facing
// Error it corresponds to. Errors this gateway did not itself define (e.g.
// transport/context failures) fall back to a generic 502/500.
func mapError(err error) Error {
	if err == nil {
		return ErrGenericInternalServerError
	}
	if apiErr, ok := err.(Error); ok {
		return apiErr
	}

	var notWhitelisted *signer.NotWhitelistedError
	if errors.As(err, &notWhitelisted) {
		return ErrNotWhitelisted.WithErr(err)
	}
	var nonpayable *signer.NonpayableValueError
	if errors.As(err, &nonpayable) {
		return ErrNonpayableValue.WithErr(err)
	}
	var unknownFn *signer.UnknownFunctionError
	if errors.As(err, &unknownFn) {
		return ErrUnknownFunction.WithErr(err)
	}
	var unknownKind *signer.UnknownRequestKindError
	if errors.As(err, &unknownKind) {
		return ErrUnknownRequestKind.WithErr(err)
	}
	var noSuchToken *signer.NoSuchTokenError
	if errors.As(err, &noSuchToken) {
		return ErrUnknownToken.WithErr(err)
	}
	var missingVal *signer.MissingValError
	if errors.As(err, &missingVal) {
		return ErrArgCount.WithErr(err)
	}
	var unknownVal *signer.UnknownValError
	if errors.As(err, &unknownVal) {
		return ErrArgCount.WithErr(err)
	}
	var argCount *abi.ArgCountError
	if errors.As(err, &argCount) {
		return ErrArgCount.WithErr(err)
	}
	var argType *abi.ArgTypeError
	if errors.As(err, &argType) {
		return ErrArgType.WithErr(err)
	}
	var topicCount *abi.TopicCountError
	if errors.As(err, &topicCount) {
		return ErrArgCount.WithErr(err)
	}
	var topicType *abi.TopicTypeError
	if errors.As(err, &topicType) {
		return ErrArgType.WithErr(err)
	}
	var noSuchEvent *query.NoSuchEventError
	if errors.As(err, &noSuchEvent) {
		return ErrUnknownEvent.WithErr(err)
	}
	var unknownTopic *query.UnknownTopicError
	if errors.As(err, &unknownTopic) {
		return ErrUnknownTopic.WithErr(err)
	}

	switch {
	case errors.Is(err, signer.ErrRawSigningDisabled):
		return ErrRawSigningDisabled.WithErr(err)
	case errors.Is(err, signer.ErrCreationDisabled):
		return ErrCreationDisabled.WithErr(err)
	case errors.Is(err, signer.ErrMissingTo):
		return ErrNoTarget.WithErr(err)
	}

	return ErrUpstreamRPC.WithErr(err)
}
