package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/marmos91/mediastorage/pkg/recordstore"
)

// decodeJSON decodes r's body as JSON into v, rejecting trailing garbage.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// asStoreError unwraps err to a *recordstore.StoreError, if it is one.
func asStoreError(err error) (*recordstore.StoreError, bool) {
	var se *recordstore.StoreError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// writeStoreError maps a recordstore error to the status codes §4.3
// reserves for each outcome: 404 for a missing record, 412 for a uid
// collision on insert, 503 for a store the client should retry against
// later, and 500 for anything else (infrastructure failures the store
// wraps rather than categorizes).
func writeStoreError(w http.ResponseWriter, err error) {
	se, ok := asStoreError(err)
	if !ok {
		internalErr(w, "record store error")
		return
	}
	switch se.Code {
	case recordstore.ErrNotFound:
		notFound(w, "no such record")
	case recordstore.ErrConflict:
		preconditionFailed(w, "uid already exists")
	case recordstore.ErrUnavailable:
		unavailable(w, "record store unreachable")
	default:
		internalErr(w, "record store error")
	}
}
