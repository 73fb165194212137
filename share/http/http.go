// Package http provides HTTP handlers for running the share workflow and
// reading its recorded phase events.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fleetlink/nanoshare/history"
	"github.com/fleetlink/nanoshare/http/api"
	"github.com/fleetlink/nanoshare/logkeys"
	"github.com/fleetlink/nanoshare/share"
	"github.com/fleetlink/nanoshare/store"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var (
	ErrMissingProcessor = errors.New("missing processor")
	ErrMissingStore     = errors.New("missing store")
	ErrNoID             = errors.New("missing id parameter")
	ErrNoSerial         = errors.New("missing serial parameter")
)

// AssetProcessor runs the share (or unshare) workflow for one asset.
type AssetProcessor interface {
	Process(ctx context.Context, assetID string, shareIntent bool) (*share.Result, error)
}

// statusFor maps workflow errors onto HTTP status codes.
func statusFor(err error) int {
	var toErr *share.TimeoutError
	switch {
	case errors.Is(err, share.ErrNotShareable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &toErr):
		return http.StatusGatewayTimeout
	case errors.Is(err, store.ErrRemoteUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrRemoteRejected):
		return http.StatusBadGateway
	}
	return 0
}

// ProcessHandler runs the workflow for the asset named by the ":id" URL
// parameter and returns the JSON result. The share branch runs when
// shareIntent is true, the unshare branch otherwise. The workflow runs
// synchronously in the request; re-invoking after a timeout response
// resumes from current store state.
func ProcessHandler(proc AssetProcessor, shareIntent bool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if proc == nil {
			logger.Info(logkeys.Error, ErrMissingProcessor)
			api.JSONError(w, ErrMissingProcessor, 0)
			return
		}

		id := flow.Param(r.Context(), "id")
		if id == "" {
			logger.Info(logkeys.Message, "parameters", logkeys.Error, ErrNoID)
			api.JSONError(w, ErrNoID, http.StatusBadRequest)
			return
		}

		logger = logger.With(logkeys.AssetID, id)
		result, err := proc.Process(r.Context(), id, shareIntent)
		if err != nil {
			logger.Info(logkeys.Message, "processing asset", logkeys.Error, err)
			api.JSONError(w, err, statusFor(err))
			return
		}

		logger.Debug(logkeys.Message, "processed asset")
		w.Header().Set("Content-Type", "application/json")
		if err = json.NewEncoder(w).Encode(result); err != nil {
			logger.Info(logkeys.Message, "encoding json to body", logkeys.Error, err)
			return
		}
	}
}

// HistoryHandler retrieves and returns JSON of the phase events recorded
// for the serial number in the ":serial" URL parameter. An optional
// "limit" query parameter keeps only the most recent events.
func HistoryHandler(store history.ReadStorage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if store == nil {
			logger.Info(logkeys.Error, ErrMissingStore)
			api.JSONError(w, ErrMissingStore, 0)
			return
		}

		serial := flow.Param(r.Context(), "serial")
		if serial == "" {
			logger.Info(logkeys.Message, "parameters", logkeys.Error, ErrNoSerial)
			api.JSONError(w, ErrNoSerial, http.StatusBadRequest)
			return
		}

		opt := &history.SearchOptions{SerialNumber: serial}
		if q := r.URL.Query().Get("limit"); q != "" {
			limit, err := strconv.Atoi(q)
			if err != nil {
				logger.Info(logkeys.Message, "parameters", logkeys.Error, err)
				api.JSONError(w, err, http.StatusBadRequest)
				return
			}
			opt.Limit = limit
		}

		logger = logger.With(logkeys.Serial, serial)
		events, err := store.RetrieveEvents(r.Context(), opt)
		if err != nil {
			logger.Info(logkeys.Message, "retrieve events", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}

		logger.Debug(
			logkeys.Message, "retrieved events",
			logkeys.GenericCount, len(events),
		)
		w.Header().Set("Content-Type", "application/json")
		if err = json.NewEncoder(w).Encode(events); err != nil {
			logger.Info(logkeys.Message, "encoding json to body", logkeys.Error, err)
			return
		}
	}
}

// Mux can register HTTP handlers.
// Ostensibly this supports flow router.
type Mux interface {
	// Handle registers the handler for the given pattern.
	Handle(pattern string, handler http.Handler, methods ...string)
}

// HandleAPIv1 registers the various API handlers into mux.
// API endpoint paths are prepended with prefix.
// Authentication or any other layered handlers are not present.
// They are assumed to be layered with mux, possibly at the Handle call.
// The logger is adorned with a "handler" key of the endpoint name.
func HandleAPIv1(prefix string, mux Mux, logger log.Logger, proc AssetProcessor, s history.ReadStorage) {
	// workflow

	mux.Handle(
		prefix+"/share/:id",
		ProcessHandler(proc, true, logger.With("handler", "share")),
		"POST",
	)
	mux.Handle(
		prefix+"/unshare/:id",
		ProcessHandler(proc, false, logger.With("handler", "unshare")),
		"POST",
	)

	// phase event history

	mux.Handle(
		prefix+"/history/:serial",
		HistoryHandler(s, logger.With("handler", "get history")),
		"GET",
	)
}
