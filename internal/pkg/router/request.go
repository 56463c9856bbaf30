package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
)

// maxBodyBytes bounds request bodies; alerts carry the largest payloads.
const maxBodyBytes = 1 << 20

type Request struct {
	*http.Request
}

func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

func (r *Request) GetParamInt64(key string) (int64, error) {
	v, err := strconv.ParseInt(r.GetParam(key), 10, 64)
	if err != nil {
		return 0, goerror.NewInvalidFormat(key + " must be an integer")
	}
	return v, nil
}

func (r *Request) GetQuery(key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// GetQueryInt32 returns zero for an absent parameter.
func (r *Request) GetQueryInt32(key string) (int32, error) {
	raw := r.GetQuery(key)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, goerror.NewInvalidFormat(key + " must be an integer")
	}
	return int32(v), nil
}

// DecodeBody reads exactly one JSON value into dst and rejects unknown fields.
func (r *Request) DecodeBody(dst any) error {
	if r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}
	if !errors.Is(dec.Decode(&struct{}{}), io.EOF) {
		return goerror.NewInvalidFormat()
	}

	return nil
}
