package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"approval-ledger/pkg/workflow"
)

// params holds request body fields. Bodies may be JSON, urlencoded or
// multipart; form values arrive as strings, JSON numbers as json.Number.
type params map[string]interface{}

// errBodyTooLarge is returned for bodies over the configured size caps.
var errBodyTooLarge = errors.New("request body too large")

func (s *Server) readParams(w http.ResponseWriter, r *http.Request) (params, error) {
	p := params{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		// ParseMultipartForm spills large parts to disk, so the cap has to
		// be on the body itself.
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)
		if err := r.ParseMultipartForm(s.config.MaxUploadSize); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, maxErr.Limit)
			}
			return nil, &workflow.ValidationError{Message: "malformed multipart body: " + err.Error()}
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				p[k] = v[0]
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, &workflow.ValidationError{Message: "malformed form body: " + err.Error()}
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				p[k] = v[0]
			}
		}
	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
		if err != nil {
			return nil, &workflow.ValidationError{Message: "unreadable body: " + err.Error()}
		}
		if int64(len(body)) > s.config.MaxBodySize {
			return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, s.config.MaxBodySize)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return p, nil
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&p); err != nil {
			return nil, &workflow.ValidationError{Message: "malformed JSON body: " + err.Error()}
		}
	}

	return p, nil
}

// str returns a field as a trimmed string.
func (p params) str(name string) string {
	switch v := p[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// id returns an identifier field in canonical form, so 42 and "42" agree.
func (p params) id(name string) string {
	if id, ok := workflow.NormalizeID(p[name]); ok {
		return id
	}
	return p.str(name)
}

// raw returns a field as sent.
func (p params) raw(name string) interface{} {
	return p[name]
}

// requireFields returns a validation error naming the first empty field.
func (p params) requireFields(names ...string) error {
	for _, name := range names {
		if p.str(name) == "" {
			return &workflow.ValidationError{Field: name, Message: "is required"}
		}
	}
	return nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, http.ErrMissingFile)
}
