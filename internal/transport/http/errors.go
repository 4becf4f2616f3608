package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeAlreadyReservedOrSold = "already_reserved_or_sold"
	codeItemNotFound          = "item_not_found"
	codeHoldExpired           = "hold_expired"
	codeAlreadySold           = "already_sold"
	codeInvalidRequestBody    = "invalid_request_body"
	codeMissingItemID         = "missing_item_id"
	codeTitleRequired         = "item_title_required"
	codeInvalidPrice          = "invalid_price"
	codeInvalidID             = "invalid_id"
	codeNotFound              = "not_found"
	codeForbidden             = "forbidden"
	codeServerError           = "server_error"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
