// Package main starts a NanoSHARE server.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/fleetlink/nanoshare/history"
	"github.com/fleetlink/nanoshare/logkeys"
	"github.com/fleetlink/nanoshare/share"
	sharehttp "github.com/fleetlink/nanoshare/share/http"
	"github.com/fleetlink/nanoshare/store/httpapi"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/envflag"
	nanohttp "github.com/micromdm/nanolib/http"
	"github.com/micromdm/nanolib/http/trace"
	"github.com/micromdm/nanolib/log/stdlogfmt"
)

// overridden by -ldflags -X
var version = "unknown"

const (
	apiUsername = "nanoshare"
	apiRealm    = "nanoshare"
)

func main() {
	var (
		flDebug   = flag.Bool("debug", false, "log debug messages")
		flListen  = flag.String("listen", ":9004", "HTTP listen address")
		flVersion = flag.Bool("version", false, "print version and exit")
		flAPIKey  = flag.String("api", "", "API key for API endpoints")
		flConfig  = flag.String("config", "config.toml", "path to store pair configuration")
		flStorage = flag.String("storage", "file", "name of history storage backend")
		flDSN     = flag.String("storage-dsn", "", "data source name (e.g. connection string or path)")
		flManual  = flag.Bool("manual-approval", false, "approve propagated shares explicitly instead of store-level auto-accept")
	)
	envflag.Parse("NANOSHARE_", []string{"version"})

	if *flVersion {
		fmt.Println(version)
		return
	}

	logger := stdlogfmt.New(stdlogfmt.WithDebugFlag(*flDebug))

	config, err := loadConfig(*flConfig)
	if err != nil {
		logger.Info(logkeys.Message, "loading config", logkeys.Error, err)
		os.Exit(1)
	}

	// configure phase event history storage
	storage, err := parseStorage(*flStorage, *flDSN)
	if err != nil {
		logger.Info(logkeys.Message, "parse storage", logkeys.Error, err)
		os.Exit(1)
	}

	// configure the two store API clients
	source, err := httpapi.New(config.Source.URL, config.Source.APIKey)
	if err != nil {
		logger.Info(logkeys.Message, "creating source client", logkeys.Error, err)
		os.Exit(1)
	}
	target, err := httpapi.New(config.Target.URL, config.Target.APIKey)
	if err != nil {
		logger.Info(logkeys.Message, "creating target client", logkeys.Error, err)
		os.Exit(1)
	}

	// configure the workflow
	opts := []share.Option{
		share.WithLogger(logger.With("service", "share")),
		share.WithRecorder(history.NewRecorder(storage)),
	}
	if p := config.poller(); p != nil {
		opts = append(opts, share.WithPoller(p))
	}
	if *flManual {
		opts = append(opts, share.WithManualApproval())
	}
	sharer := share.New(source, target, config.Source.Name, config.Target.Name, opts...)

	mux := flow.New()

	mux.Handle("/version", nanohttp.NewJSONVersionHandler(version))

	if *flAPIKey != "" {
		mux.Group(func(mux *flow.Mux) {
			mux.Use(func(h http.Handler) http.Handler {
				return nanohttp.NewSimpleBasicAuthHandler(h, apiUsername, *flAPIKey, apiRealm)
			})

			sharehttp.HandleAPIv1("/v1", mux, logger, sharer, storage)
		})
	}

	// seed for newTraceID
	rand.Seed(time.Now().UnixNano())

	logger.Info(logkeys.Message, "starting server", "listen", *flListen)
	err = http.ListenAndServe(*flListen, trace.NewTraceLoggingHandler(mux, logger.With("handler", "log"), newTraceID))
	logs := []interface{}{logkeys.Message, "server shutdown"}
	if err != nil {
		logs = append(logs, logkeys.Error, err)
	}
	logger.Info(logs...)
}

// newTraceID generates a new HTTP trace ID for context logging.
// Currently this just makes a random string. This would be better
// served by e.g. https://github.com/oklog/ulid or something like
// https://opentelemetry.io/ someday.
func newTraceID(_ *http.Request) string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
