package apiserver

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Connor22/hydrus/errors"
)

// ResponseContext is what the Dispatch stage hands to Render: a status, an
// optional set of cookies to set, and exactly one of a JSON body, a raw byte
// body, or a file stream.
type ResponseContext struct {
	Status  int
	Cookies []*http.Cookie
	Header  http.Header

	JSONBody interface{}
	RawBody  []byte
	Stream   io.ReadCloser
	MimeType string
}

// writeJSON writes v as a JSON body with status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders a PipelineError per the Kind -> HTTP status table.
func writeError(w http.ResponseWriter, err error) {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		pe = &PipelineError{Kind: KindInternal, Err: err}
	}
	writeJSON(w, pe.Kind.StatusCode(), map[string]string{"error": pe.Error()})
}

// readJSON decodes the request body into dst, capping the read at maxBytes
// to bound memory use from a hostile or mistaken client.
func readJSON(r *http.Request, dst interface{}, maxBytes int64) error {
	defer r.Body.Close()
	body := io.LimitReader(r.Body, maxBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return Fail(KindBadRequest, "malformed JSON body: "+err.Error())
	}
	return nil
}

// requireMethod fails the request with KindBadRequest unless r.Method == method.
func requireMethod(r *http.Request, method string) error {
	if r.Method != method {
		return Failf(KindBadRequest, "method %s not allowed on %s", r.Method, r.URL.Path)
	}
	return nil
}

// requireMethods is requireMethod for an allowed set.
func requireMethods(r *http.Request, methods ...string) error {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return Failf(KindBadRequest, "method %s not allowed on %s", r.Method, r.URL.Path)
}
