package apiserver

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/Connor22/hydrus/errors"
	"github.com/Connor22/hydrus/kernel"
	"github.com/Connor22/hydrus/logger"
)

// RequestArgs carries the arguments parsed from the query string or POST
// body, plus the path of any uploaded file streamed to a temp location.
type RequestArgs struct {
	Values   map[string]string
	Header   http.Header
	FilePath string // set when the request body was a file upload
	FileSize int64
}

// Pipeline implements the five staged callbacks every request passes
// through: Restrictions, ParseArgs, Session/Account, Dispatch, Render.
// Each stage either returns a *PipelineError (Fail, short-circuiting the
// rest of the pipeline) or nil (Continue to the next stage) — Go's ordinary
// error-return idiom standing in for the sum type.
type Pipeline struct {
	DB             *sql.DB
	Handlers       *kernel.HandlerRegistry
	NetworkVersion int
	TempDir        string

	Limiter *rate.Limiter
}

// NewPipeline constructs a pipeline. burstBytes/refillBytesPerSec size the
// bandwidth limiter applied during ParseArgs; pass 0 for refill to disable
// bandwidth gating.
func NewPipeline(db *sql.DB, handlers *kernel.HandlerRegistry, networkVersion int, tempDir string, refillBytesPerSec, burstBytes int) *Pipeline {
	var limiter *rate.Limiter
	if refillBytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(refillBytesPerSec), burstBytes)
	}
	return &Pipeline{
		DB:             db,
		Handlers:       handlers,
		NetworkVersion: networkVersion,
		TempDir:        tempDir,
		Limiter:        limiter,
	}
}

// ServeResource runs the full pipeline for one request against resource.
func (p *Pipeline) ServeResource(w http.ResponseWriter, r *http.Request, resource Resource) {
	if err := p.restrictions(r, resource); err != nil {
		writeError(w, err)
		return
	}

	args, err := p.parseArgs(r)
	if err != nil {
		writeError(w, err)
		return
	}

	acctCtx, err := p.sessionAccount(r, resource)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := p.dispatch(r.Context(), resource, args, acctCtx)
	if err != nil {
		writeError(w, err)
		return
	}

	p.render(w, resp)
}

// restrictions is stage 1: confirm the resource/method pair is known and
// that the client's declared network version matches ours.
func (p *Pipeline) restrictions(r *http.Request, resource Resource) error {
	methodOK := false
	for _, m := range resource.Methods {
		if m == r.Method {
			methodOK = true
			break
		}
	}
	if !methodOK {
		return Failf(KindBadRequest, "method %s not allowed on %s", r.Method, resource.Path)
	}

	ua := r.Header.Get("User-Agent")
	if ua == "" {
		return nil
	}
	const prefix = "hydrus/"
	if !strings.HasPrefix(ua, prefix) {
		return nil
	}
	versionStr := strings.TrimPrefix(ua, prefix)
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return nil
	}
	if version != p.NetworkVersion {
		return Failf(KindNetworkVersionMismatch, "NETWORK_VERSION mismatch: client %d, server %d", version, p.NetworkVersion)
	}
	return nil
}

// parseArgs is stage 2: GET args come from the query string; POST args
// depend on Content-Type — JSON decodes into a flat map, anything else is
// streamed to a temp file. Bytes read are charged against the bandwidth
// limiter before the request is allowed to proceed further.
func (p *Pipeline) parseArgs(r *http.Request) (*RequestArgs, error) {
	args := &RequestArgs{Values: make(map[string]string), Header: r.Header}

	for k := range r.URL.Query() {
		args.Values[k] = r.URL.Query().Get(k)
	}

	if r.Method != http.MethodPost {
		return args, nil
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var body map[string]interface{}
		if err := readJSON(r, &body, 32<<20); err != nil {
			return nil, err
		}
		for k, v := range body {
			args.Values[k] = fmt.Sprintf("%v", v)
		}
		return args, nil
	}

	tmp, err := os.CreateTemp(p.TempDir, "upload-*")
	if err != nil {
		return nil, WrapFail(KindInternal, err, "create temp file for upload")
	}
	defer tmp.Close()

	n, err := copyWithBandwidthLimit(r.Context(), tmp, r.Body, p.Limiter)
	if err != nil {
		os.Remove(tmp.Name())
		return nil, WrapFail(KindBandwidthExhausted, err, "upload exceeded bandwidth allowance")
	}
	args.FilePath = tmp.Name()
	args.FileSize = n
	return args, nil
}

// sessionAccount is stage 3: restricted and above endpoints must resolve to
// a functional account; admin endpoints additionally require the admin
// permission.
func (p *Pipeline) sessionAccount(r *http.Request, resource Resource) (interface{}, error) {
	if !resource.Class.RequiresSession() {
		return nil, nil
	}
	account, err := ResolveAccount(r, p.DB)
	if err != nil {
		return nil, err
	}
	if resource.Class.RequiresAdmin() {
		if err := RequirePermission(account, "admin"); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// dispatch is stage 4: hand the parsed request to the handler registered
// for resource.Path.
func (p *Pipeline) dispatch(ctx context.Context, resource Resource, args *RequestArgs, account interface{}) (*ResponseContext, error) {
	payload := map[string]interface{}{
		"args":    args,
		"account": account,
	}
	result, err := p.Handlers.Dispatch(ctx, resource.Path, payload)
	if err != nil {
		if errors.Is(err, kernel.ErrHandlerNotFound) {
			return nil, Fail(KindNotFound, "no handler registered for this resource")
		}
		var pe *PipelineError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, WrapFail(KindInternal, err, "dispatch failed")
	}
	resp, ok := result.(*ResponseContext)
	if !ok {
		return nil, Fail(KindInternal, "handler returned an unexpected response type")
	}
	return resp, nil
}

// render is stage 5: write status, cookies, and body.
func (p *Pipeline) render(w http.ResponseWriter, resp *ResponseContext) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for _, c := range resp.Cookies {
		http.SetCookie(w, c)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	switch {
	case resp.Stream != nil:
		defer resp.Stream.Close()
		if resp.MimeType != "" {
			w.Header().Set("Content-Type", resp.MimeType)
		}
		w.WriteHeader(status)
		if _, err := copyStream(w, resp.Stream); err != nil {
			logger.ComponentLogger("apiserver").Errorw("stream render failed", "error", err)
		}
	case resp.JSONBody != nil:
		writeJSON(w, status, resp.JSONBody)
	case resp.RawBody != nil:
		if resp.MimeType != "" {
			w.Header().Set("Content-Type", resp.MimeType)
		}
		w.WriteHeader(status)
		_, _ = w.Write(resp.RawBody)
	default:
		w.WriteHeader(status)
	}
}
