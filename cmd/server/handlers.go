package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/subscout/subreddit-analyzer/internal/analysis"
	"github.com/subscout/subreddit-analyzer/internal/analyzer"
	"github.com/subscout/subreddit-analyzer/internal/models"
	"github.com/subscout/subreddit-analyzer/internal/sources"
	"github.com/subscout/subreddit-analyzer/internal/storage"
)

// analyzerService is the part of analyzer.Service the HTTP handlers use
type analyzerService interface {
	AnalyzeCommunity(ctx context.Context, name string) (*models.AnalysisReport, error)
	StoredReport(name string) ([]byte, error)
	StoredCommunities() ([]string, error)
	DeleteReport(name string) error
	RunWatched() error
	GetMetrics() string
}

var _ analyzerService = (*analyzer.Service)(nil)

func newRouter(svc analyzerService) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(svc)).Methods("GET")
	router.HandleFunc("/analyze/{community}", analyzeHandler(svc)).Methods("POST")
	router.HandleFunc("/reports", listReportsHandler(svc)).Methods("GET")
	router.HandleFunc("/reports/{community}", reportHandler(svc)).Methods("GET")
	router.HandleFunc("/reports/{community}", deleteReportHandler(svc)).Methods("DELETE")
	router.HandleFunc("/trigger", triggerHandler(svc)).Methods("POST")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func metricsHandler(svc analyzerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(svc.GetMetrics()))
	}
}

// analyzeHandler runs one analysis synchronously. A report whose narrative failed
// is still a 200; the failure is carried in its enrichmentError field.
func analyzeHandler(svc analyzerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		community := mux.Vars(r)["community"]

		report, err := svc.AnalyzeCommunity(r.Context(), community)
		if report == nil {
			status := statusForError(err)
			logrus.Warnf("Analysis of %s failed with status %d: %v", community, status, err)
			writeError(w, status, err)
			return
		}
		if err != nil {
			logrus.Warnf("Analysis of %s returned a partial report: %v", community, err)
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func reportHandler(svc analyzerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.StoredReport(mux.Vars(r)["community"])
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func listReportsHandler(svc analyzerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		communities, err := svc.StoredCommunities()
		if err != nil {
			logrus.Errorf("Failed to list stored reports: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"communities": communities})
	}
}

func deleteReportHandler(svc analyzerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteReport(mux.Vars(r)["community"]); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func triggerHandler(svc analyzerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := svc.RunWatched(); err != nil {
				logrus.Errorf("Manual analysis trigger failed: %v", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Watched communities run triggered"})
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, analyzer.ErrAlreadyInProgress):
		return http.StatusConflict
	case errors.Is(err, analysis.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sources.ErrInvalidCommunityName):
		return http.StatusBadRequest
	case errors.Is(err, sources.ErrCommunityNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
