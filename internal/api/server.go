// Package api is the read path: it answers HTTP requests from cached keys
// the worker maintains, plus fetch-through weather endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
)

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(Recover())
	r.Use(Logging(s.logger))
	r.Use(CORS())
	r.Use(NoCache())

	r.Route("/api", func(r chi.Router) {
		r.Get("/seismic", s.Seismic)
		r.Get("/aircraft", s.Aircraft)
		r.Get("/aprs", s.APRS)
		r.Get("/fires", s.Fires)
		r.Get("/gfs/{layer}", s.GFS)

		r.Get("/lightning", s.passthrough(keys.Payload("lightning", "global"), "Lightning"))
		r.Get("/spaceweather", s.passthrough(keys.Payload("space-weather", "current"), "Space weather"))
		r.Get("/tec", s.passthrough(keys.Payload("tec", "global"), "TEC"))
		r.Get("/aurora", s.passthrough(keys.Payload("aurora", "latest"), "Aurora"))
		r.Get("/kiwisdr", s.passthrough(keys.Payload("kiwisdr", "stations"), "KiwiSDR"))
		r.Get("/ocean-currents", s.passthrough(keys.Payload("ocean-currents", "global"), "Ocean currents"))
		r.Get("/waves", s.passthrough(keys.Payload("waves", "global"), "Waves"))
		r.Get("/sst", s.passthrough(keys.Payload("sst", "global"), "SST"))
		r.Get("/air-quality", s.passthrough(keys.Payload("air-quality", "global"), "Air quality"))
		r.Get("/warnings", s.passthrough(keys.Payload("warnings", "ipma"), "Warnings"))
		r.Get("/prociv", s.passthrough(keys.Payload("prociv", "ocorrencias"), "ProCiv"))
		r.Get("/gdacs", s.passthrough(keys.Payload("gdacs", "events"), "GDACS"))

		r.Get("/weather/current", s.WeatherCurrent)
		r.Get("/weather/tiles/{layer}/{z}/{x}/{y}", s.WeatherTile)
	})
	return r
}

// Run serves the read API until ctx is cancelled.
func Run(ctx context.Context, addr string, s *Server) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
