package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/morezero/channel-gateway/pkg/commsutil"
	"github.com/morezero/channel-gateway/pkg/dispatcher"
	"github.com/morezero/channel-gateway/pkg/envelope"
	"github.com/morezero/channel-gateway/pkg/registry"
	"github.com/morezero/channel-gateway/pkg/request"
)

const httpLogPrefix = "server:http"

// maxRequestBody bounds POST /request bodies.
const maxRequestBody = 1 << 20

// Router returns the HTTP handler for the gateway.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome())
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())

	r.Post("/request", s.handleRequest)
	r.Get("/channel/*", s.handleChannelValue)

	r.Get("/channels", s.handleListChannels)
	r.Get("/channels/*", s.handleDescribeChannel)
	return r
}

// handleRequest dispatches a JSON request envelope.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dispatcher.ErrorResponse("", &dispatcher.Error{
			Kind: dispatcher.KindMalformedRequest, Message: "failed to read body: " + err.Error(),
		}))
		return
	}
	if len(body) > maxRequestBody {
		writeJSON(w, http.StatusRequestEntityTooLarge, dispatcher.ErrorResponse("", &dispatcher.Error{
			Kind: dispatcher.KindMalformedRequest, Message: "request body too large",
		}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	s.writeDispatch(w, r, s.disp.DispatchBytes(ctx, body))
}

// handleChannelValue serves GET /channel/{name}?ARG=value. Query parameters
// become arguments; a VALUE parameter makes the request a set.
func (s *Server) handleChannelValue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	env, err := request.FromValues(name, r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dispatcher.ErrorResponse("", dispatcher.AsError(err, dispatcher.KindMalformedRequest)))
		return
	}
	env.ID = middleware.GetReqID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	s.writeDispatch(w, r, s.disp.Dispatch(ctx, env))
}

// writeDispatch writes a dispatcher response. Table results are streamed as
// Arrow IPC when the client accepts it.
func (s *Server) writeDispatch(w http.ResponseWriter, r *http.Request, resp *dispatcher.Response) {
	if !resp.Ok {
		writeJSON(w, statusFor(dispatcher.Kind(resp.Error.Code)), resp)
		return
	}
	if resp.Result != nil && resp.Result.Kind == envelope.KindTable && acceptsArrow(r) {
		w.Header().Set("Content-Type", envelope.ArrowStreamMediaType)
		w.Header().Set("X-Request-Id", resp.ID)
		if err := resp.Result.Table.WriteIPC(w); err != nil {
			slog.Error(fmt.Sprintf("%s - arrow encode for %s: %v", httpLogPrefix, resp.ID, err))
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(k dispatcher.Kind) int {
	switch k {
	case dispatcher.KindUnsupportedOperation:
		return http.StatusMethodNotAllowed
	case dispatcher.KindNativeOperationFailure:
		return http.StatusBadGateway
	case dispatcher.KindMisconfiguredChannel, dispatcher.KindInternal:
		return http.StatusInternalServerError
	}
	if k.IsClientError() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func acceptsArrow(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == envelope.ArrowStreamMediaType {
			return true
		}
	}
	return false
}

// handleListChannels serves GET /channels?query=&page=&limit=.
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	writeJSON(w, http.StatusOK, s.reg.List(&registry.ListInput{
		Query: q.Get("query"),
		Page:  page,
		Limit: limit,
	}))
}

// handleDescribeChannel serves GET /channels/{name}.
func (s *Server) handleDescribeChannel(w http.ResponseWriter, r *http.Request) {
	out, err := s.reg.Describe(chi.URLParam(r, "*"))
	if err != nil {
		var regErr *registry.RegistryError
		if !errors.As(err, &regErr) {
			regErr = registry.NewRegistryError("INTERNAL_ERROR", err.Error())
		}
		status := http.StatusInternalServerError
		switch regErr.Code {
		case "NOT_FOUND":
			status = http.StatusNotFound
		case "INVALID_ARGUMENT":
			status = http.StatusBadRequest
		}
		writeJSON(w, status, regErr)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// healthReport adds the COMMS check to the registry health.
func (s *Server) healthReport() *registry.HealthOutput {
	h := s.reg.Health()
	if s.nc != nil {
		h.Checks.COMMS = commsutil.Ping(s.nc, s.cfg.HealthCheckTimeout)
		if !h.Checks.COMMS {
			h.Status = "unhealthy"
		}
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.healthReport()
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeJSON encodes v before committing the status, so an encode failure
// still produces a complete INTERNAL_ERROR envelope.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := commsutil.EncodePayload(v)
	if err != nil {
		id := ""
		if resp, ok := v.(*dispatcher.Response); ok {
			id = resp.ID
		}
		slog.Error(fmt.Sprintf("%s - response encode for %q: %v", httpLogPrefix, id, err))
		status = http.StatusInternalServerError
		data, _ = commsutil.EncodePayload(encodeFailure(id, err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		slog.Warn(fmt.Sprintf("%s - response write: %v", httpLogPrefix, err))
	}
}
