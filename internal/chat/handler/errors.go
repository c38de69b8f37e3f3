package handler

import (
	"encoding/json"
	"net/http"

	"roomchat/internal/common"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var httpStatus = map[common.Kind]int{
	common.KindInvalidArgument:       http.StatusBadRequest,
	common.KindUnauthenticated:       http.StatusUnauthorized,
	common.KindNotFound:              http.StatusNotFound,
	common.KindGroupNotProvisioned:   http.StatusConflict,
	common.KindGroupMissing:          http.StatusGone,
	common.KindIdentityNotRegistered: http.StatusPreconditionFailed,
	common.KindSignerUnavailable:     http.StatusPreconditionFailed,
	common.KindClientInitFailed:      http.StatusBadGateway,
	common.KindSendFailed:            http.StatusBadGateway,
	common.KindAttachFailed:          http.StatusServiceUnavailable,
	common.KindInternal:              http.StatusInternalServerError,
}

var grpcCode = map[common.Kind]codes.Code{
	common.KindInvalidArgument:       codes.InvalidArgument,
	common.KindUnauthenticated:       codes.Unauthenticated,
	common.KindNotFound:              codes.NotFound,
	common.KindGroupNotProvisioned:   codes.FailedPrecondition,
	common.KindGroupMissing:          codes.FailedPrecondition,
	common.KindIdentityNotRegistered: codes.FailedPrecondition,
	common.KindSignerUnavailable:     codes.FailedPrecondition,
	common.KindClientInitFailed:      codes.Unavailable,
	common.KindAttachFailed:          codes.Unavailable,
	common.KindSendFailed:            codes.Unavailable,
	common.KindInternal:              codes.Internal,
}

// HTTPStatus maps an error kind onto a response status.
func HTTPStatus(kind common.Kind) int {
	if code, ok := httpStatus[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func GRPCCode(kind common.Kind) codes.Code {
	if code, ok := grpcCode[kind]; ok {
		return code
	}
	return codes.Internal
}

// statusError converts a facade error into a gRPC status carrying the
// user-facing text for its kind.
func statusError(err error) error {
	kind := common.KindOf(err)
	return status.Error(GRPCCode(kind), common.UserMessage(kind))
}

type errorBody struct {
	Kind    common.Kind `json:"kind"`
	Message string      `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := common.KindOf(err)
	writeJSON(w, HTTPStatus(kind), errorResponse{Error: errorBody{Kind: kind, Message: common.UserMessage(kind)}})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{Kind: common.KindInvalidArgument, Message: message}})
}
