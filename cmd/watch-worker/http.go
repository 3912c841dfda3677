package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/terminwatch/terminwatch/config"
	"github.com/terminwatch/terminwatch/internal/models"
	"github.com/terminwatch/terminwatch/internal/services/checker"
	"github.com/terminwatch/terminwatch/internal/services/locations"
	"github.com/terminwatch/terminwatch/internal/services/trackers"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	scheduler  *checker.Scheduler
	checker    *checker.Checker
	trackers   *trackers.Service
	locations  *locations.Registry
	cronSecret string
	cfg        *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.scheduler == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("scheduler not wired"))
			return
		}
		writeJSON(w, http.StatusOK, opts.scheduler.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("config not wired"))
			return
		}
		// Avoid dumping secrets; show only operational worker settings.
		out := map[string]any{
			"pollIntervalSeconds": opts.cfg.TerminWatch.WorkerPollIntervalSeconds,
			"batchSize":           opts.cfg.TerminWatch.WorkerBatchSize,
			"concurrency":         opts.cfg.TerminWatch.WorkerConcurrency,
			"leaseSeconds":        opts.cfg.TerminWatch.WorkerLeaseSeconds,
			"fetcherMode":         opts.cfg.TerminWatch.FetcherMode,
			"fetchTimeoutSeconds": opts.cfg.TerminWatch.FetchTimeoutSeconds,
			"errorThreshold":      opts.cfg.TerminWatch.ErrorThreshold,
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.scheduler == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("scheduler not wired"))
			return
		}
		opts.scheduler.Trigger()
		writeJSON(w, http.StatusOK, map[string]any{"triggered": true})
	})

	// External cron entry point: runs one pass synchronously and reports what
	// it did. Protected by a shared secret so only the cron can call it.
	r.Post("/run", func(w http.ResponseWriter, r *http.Request) {
		if opts.cronSecret == "" {
			writeError(w, http.StatusServiceUnavailable, errors.New("cron secret is not configured"))
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+opts.cronSecret {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		if opts.scheduler == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("scheduler not wired"))
			return
		}
		stats := opts.scheduler.RunPass(r.Context(), time.Now().UTC())
		writeJSON(w, http.StatusOK, stats)
	})

	r.Get("/locations", func(w http.ResponseWriter, r *http.Request) {
		if opts.locations == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("locations not wired"))
			return
		}
		locs, err := opts.locations.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
	})

	r.Route("/trackers", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			if opts.trackers == nil {
				writeError(w, http.StatusServiceUnavailable, errors.New("trackers not wired"))
				return
			}
			var in createTrackerRequest
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode body"))
				return
			}
			tr, err := opts.trackers.Create(r.Context(), in.toInput())
			if err != nil {
				writeTrackerError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, tr)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, userID, ok := trackerIDParam(w, r)
			if !ok {
				return
			}
			tr, err := opts.trackers.GetByID(r.Context(), id, userID)
			if err != nil {
				writeTrackerError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, tr)
		})

		r.Post("/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
			id, userID, ok := trackerIDParam(w, r)
			if !ok {
				return
			}
			tr, err := opts.trackers.Toggle(r.Context(), id, userID)
			if err != nil {
				writeTrackerError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, tr)
		})

		r.Get("/{id}/results", func(w http.ResponseWriter, r *http.Request) {
			id, userID, ok := trackerIDParam(w, r)
			if !ok {
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			results, err := opts.trackers.ListResults(r.Context(), id, userID, limit, offset)
			if err != nil {
				writeTrackerError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"results": results})
		})

		r.Post("/{id}/check", func(w http.ResponseWriter, r *http.Request) {
			if opts.checker == nil {
				writeError(w, http.StatusServiceUnavailable, errors.New("checker not wired"))
				return
			}
			id, _, ok := trackerIDParam(w, r)
			if !ok {
				return
			}
			res, err := opts.checker.CheckTrackerByID(r.Context(), id)
			switch {
			case errors.Is(err, checker.ErrTrackerNotFound):
				writeError(w, http.StatusNotFound, err)
				return
			case errors.Is(err, checker.ErrTrackerInactive), errors.Is(err, checker.ErrTrackerExpired):
				writeError(w, http.StatusConflict, err)
				return
			case err != nil:
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})
	})

	// Serve swagger with no-cache + cachebuster.
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}

type createTrackerRequest struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	LocationCode string `json:"locationCode"`
	VisaType     string `json:"visaType"`
	TargetURL    string `json:"targetUrl"`

	CheckIntervalMinutes int `json:"checkIntervalMinutes"`

	PreferredDateFrom *string  `json:"preferredDateFrom"`
	PreferredDateTo   *string  `json:"preferredDateTo"`
	ExcludedDates     []string `json:"excludedDates"`

	NotificationChannels     []string `json:"notificationChannels"`
	NotifyOnAnySlot          bool     `json:"notifyOnAnySlot"`
	NotifyOnlyPreferredDates bool     `json:"notifyOnlyPreferredDates"`

	DaysPurchased int `json:"daysPurchased"`
}

func (in createTrackerRequest) toInput() models.TrackerCreateInput {
	return models.TrackerCreateInput{
		UserID:                   in.UserID,
		Name:                     in.Name,
		LocationCode:             in.LocationCode,
		VisaType:                 in.VisaType,
		TargetURL:                in.TargetURL,
		CheckIntervalMinutes:     in.CheckIntervalMinutes,
		PreferredDateFrom:        in.PreferredDateFrom,
		PreferredDateTo:          in.PreferredDateTo,
		ExcludedDates:            in.ExcludedDates,
		NotificationChannels:     in.NotificationChannels,
		NotifyOnAnySlot:          in.NotifyOnAnySlot,
		NotifyOnlyPreferredDates: in.NotifyOnlyPreferredDates,
		DaysPurchased:            in.DaysPurchased,
	}
}

func trackerIDParam(w http.ResponseWriter, r *http.Request) (uint64, string, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid tracker id"))
		return 0, "", false
	}
	return id, r.URL.Query().Get("userId"), true
}

func writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, trackers.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, trackers.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, trackers.ErrTrackerExpired):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, trackers.ErrLimitExceeded), errors.Is(err, trackers.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
