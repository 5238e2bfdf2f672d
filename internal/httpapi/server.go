package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vlmd/internal/generate"
	"vlmd/internal/manager"
	"vlmd/pkg/types"
)

// wire encodes every JSON body and SSE payload.
var wire = jsoniter.ConfigCompatibleWithStandardLibrary

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	Infer(ctx context.Context, req types.ChatCompletionRequest, sink manager.Sink) (generate.Result, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints; text/event-stream is not in the default list
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Post("/v1/chat/completions", chatCompletionsHandler(svc))
	r.Get("/v1/models", modelsHandler(svc))
	r.Get("/status", statusHandler(svc))
	r.Get("/healthz", healthzHandler)
	r.Get("/readyz", readyzHandler(svc))

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// modelsHandler godoc
// @Summary      List models
// @Description  Returns the served model in OpenAI list format.
// @Tags         models
// @Produce      json
// @Success      200 {object} types.ModelList
// @Router       /v1/models [get]
func modelsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models := svc.ListModels()
		out := types.ModelList{Object: "list", Data: make([]types.ModelCard, 0, len(models))}
		for _, m := range models {
			out.Data = append(out.Data, types.ModelCard{ID: m.ID, Object: "model", Created: startedAt.Unix(), OwnedBy: "vlmd"})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// statusHandler godoc
// @Summary      Server status
// @Description  Manager state, queue depth and generation counters.
// @Tags         ops
// @Produce      json
// @Success      200 {object} types.StatusResponse
// @Router       /status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// healthzHandler godoc
// @Summary      Liveness probe
// @Tags         ops
// @Produce      plain
// @Success      200 {string} string "ok"
// @Router       /healthz [get]
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyzHandler godoc
// @Summary      Readiness probe
// @Description  200 once the model is loaded, 503 while loading or draining.
// @Tags         ops
// @Produce      plain
// @Success      200 {string} string "ready"
// @Failure      503 {string} string "loading"
// @Router       /readyz [get]
func readyzHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := wire.Marshal(v)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}
