package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"exoplanet-classifier/internal/schema"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Request bodies above this size are rejected.
const maxBodyBytes = 1 << 20

// ModelServer exposes a Predictor over HTTP and websocket.
type ModelServer struct {
	predictor *Predictor
	gatherer  prometheus.Gatherer
	upgrader  websocket.Upgrader
	server    *http.Server
}

// NewModelServer wires the routes. A nil gatherer serves the default
// prometheus registry on /metrics.
func NewModelServer(predictor *Predictor, port int, gatherer prometheus.Gatherer) *ModelServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	ms := &ModelServer{
		predictor: predictor,
		gatherer:  gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      ms.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return ms
}

// Routes returns the HTTP handler.
func (ms *ModelServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/", ms.handleRoot)
	r.Get("/health", ms.handleHealth)
	r.Post("/predict", ms.handlePredict)
	r.Get("/model/info", ms.handleModelInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(ms.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws/predict", ms.handleStream)
	return r
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Bool("model_loaded", ms.predictor.Available()).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "API online"})
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := ms.predictor.Health()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handlePredict answers 200 with either a prediction or an error body.
func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Debug().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("invalid predict body")
		writeJSON(w, http.StatusOK, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, ms.predictor.Predict(rec))
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info := ms.predictor.Info()
	status := http.StatusOK
	if !info.Loaded {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, info)
}

// handleStream reads one JSON record per text frame and replies with one
// prediction per frame until the client closes.
func (ms *ModelServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := ms.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}

		var resp Response
		rec, err := decodeRecord(bytes.NewReader(msg))
		if err != nil {
			resp = Response{Error: fmt.Sprintf("invalid request: %v", err)}
		} else {
			resp = ms.predictor.Predict(rec)
		}

		if err := conn.WriteJSON(resp); err != nil {
			log.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

// decodeRecord reads a single JSON object. Numbers are kept as json.Number
// so integers and floats coerce the same way.
func decodeRecord(r io.Reader) (schema.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rec schema.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return rec, nil
}
