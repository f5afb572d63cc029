package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kwv/epiransac/epipolar"
)

// maxRequestBody bounds POST /estimate payloads
const maxRequestBody = 16 << 20

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(tracker *epipolar.ResultTracker, rc epipolar.RansacConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Results   int       `json:"results"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Results:   tracker.Len(),
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("POST /estimate", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			http.Error(w, fmt.Sprintf("reading body: %v", err), http.StatusRequestEntityTooLarge)
			return
		}
		req, err := epipolar.ParseRequestJSON(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.ID == "" {
			req.ID = tracker.NextID()
		}

		tr, err := epipolar.Process(r.Context(), req, rc)
		if err != nil {
			log.Printf("[HTTP] estimate %s failed: %v", req.ID, err)
			http.Error(w, err.Error(), statusForError(err))
			return
		}
		tracker.Put(tr)
		writeJSON(w, http.StatusOK, tr)
	})

	mux.HandleFunc("POST /homography", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			http.Error(w, fmt.Sprintf("reading body: %v", err), http.StatusRequestEntityTooLarge)
			return
		}
		req, err := epipolar.ParseRequestJSON(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := epipolar.FitHomography(req)
		if err != nil {
			log.Printf("[HTTP] homography %s failed: %v", req.ID, err)
			http.Error(w, err.Error(), statusForError(err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /results", func(w http.ResponseWriter, r *http.Request) {
		ids := tracker.IDs()
		summaries := make([]epipolar.ResultSummary, 0, len(ids))
		for _, id := range ids {
			tr, ok := tracker.Get(id)
			if !ok {
				continue
			}
			summaries = append(summaries, epipolar.NewResultSummary(tr))
		}
		writeJSON(w, http.StatusOK, summaries)
	})

	mux.HandleFunc("GET /results/{id}", func(w http.ResponseWriter, r *http.Request) {
		tr, ok := lookup(w, tracker, r.PathValue("id"))
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, tr)
	})

	mux.HandleFunc("GET /results/{id}/overlay.svg", func(w http.ResponseWriter, r *http.Request) {
		tr, ok := lookup(w, tracker, r.PathValue("id"))
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := epipolar.NewVectorOverlayRenderer(tr).RenderToSVG(w); err != nil {
			log.Printf("Error encoding overlay SVG: %v", err)
		}
	})

	mux.HandleFunc("GET /results/{id}/overlay.png", func(w http.ResponseWriter, r *http.Request) {
		tr, ok := lookup(w, tracker, r.PathValue("id"))
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, epipolar.NewOverlayRenderer(tr).Render()); err != nil {
			log.Printf("Error encoding overlay PNG: %v", err)
		}
	})

	mux.HandleFunc("GET /results/{id}/lines.geojson", func(w http.ResponseWriter, r *http.Request) {
		tr, ok := lookup(w, tracker, r.PathValue("id"))
		if !ok {
			return
		}
		maxLines := -1
		if s := r.URL.Query().Get("max"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "max must be an integer", http.StatusBadRequest)
				return
			}
			maxLines = n
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(epipolar.ResultFeatureCollection(tr, maxLines)); err != nil {
			log.Printf("Error encoding GeoJSON: %v", err)
		}
	})

	mux.HandleFunc("GET /epipolar-line", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var tr *epipolar.TrackedResult
		var ok bool
		if id := q.Get("id"); id != "" {
			tr, ok = lookup(w, tracker, id)
		} else if tr, ok = tracker.Latest(); !ok {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
		}
		if !ok {
			return
		}

		x, errX := strconv.ParseFloat(q.Get("x"), 64)
		y, errY := strconv.ParseFloat(q.Get("y"), 64)
		if errX != nil || errY != nil {
			http.Error(w, "x and y must be numbers", http.StatusBadRequest)
			return
		}
		view := epipolar.ViewA
		if s := q.Get("view"); s != "" {
			if view, ok = epipolar.ParseView(s); !ok {
				http.Error(w, "view must be A or B", http.StatusBadRequest)
				return
			}
		}

		bound := tr.Request.Bound(view.Other())
		feat, ok := epipolar.EpipolarLineFeature(tr.Result.F, epipolar.Point{X: x, Y: y}, view, bound)
		if !ok {
			http.Error(w, "Epipolar line does not cross the image", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(feat); err != nil {
			log.Printf("Error encoding GeoJSON: %v", err)
		}
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}

// lookup fetches a tracked result or writes 404
func lookup(w http.ResponseWriter, tracker *epipolar.ResultTracker, id string) (*epipolar.TrackedResult, bool) {
	tr, ok := tracker.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("No result with id %q", id), http.StatusNotFound)
	}
	return tr, ok
}

// statusForError maps estimation errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, epipolar.ErrInsufficientCorrespondences), errors.Is(err, epipolar.ErrDegenerateModel):
		return http.StatusUnprocessableEntity
	case errors.Is(err, epipolar.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}
