package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/indexer"
	"github.com/hyperjump/healthrag/internal/keyword"
	"github.com/hyperjump/healthrag/internal/llm"
	"github.com/hyperjump/healthrag/internal/models"
	"github.com/hyperjump/healthrag/internal/retriever"
	"github.com/hyperjump/healthrag/internal/storage"
)

const (
	maxBodyBytes       = 1 << 20
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.answerer.Answer(r.Context(), req.Question)
	if err != nil {
		status, message := classifyError(err)
		s.logger.Error("query failed", zap.Int("status", status), zap.Error(err))
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "5")
		}
		s.respondError(w, status, message)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// classifyError maps pipeline errors to a status code and a message that is
// safe to show to end users.
func classifyError(err error) (int, string) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error()
	}
	var ge *llm.GenerationError
	if errors.As(err, &ge) {
		switch ge.Kind {
		case llm.KindBusy, llm.KindUnavailable, llm.KindCanceled:
			return http.StatusServiceUnavailable, "the assistant is unavailable right now, please try again later"
		case llm.KindTimeout:
			return http.StatusGatewayTimeout, "the assistant took too long to answer, please try again"
		case llm.KindContextOverflow:
			return http.StatusUnprocessableEntity, "the question is too long to answer"
		default:
			return http.StatusBadGateway, "the assistant could not produce an answer"
		}
	}
	var re *retriever.RetrievalError
	if errors.As(err, &re) {
		return http.StatusInternalServerError, "the assistant could not search its sources"
	}
	return http.StatusInternalServerError, "internal error"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type generationStatus struct {
	Breaker string `json:"breaker"`
	Pending int    `json:"pending"`
}

type statusResponse struct {
	*indexer.Stats
	Generation *generationStatus `json:"generation,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.corpus.Stats(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	resp := statusResponse{Stats: stats}
	if s.generation != nil {
		resp.Generation = &generationStatus{Breaker: s.generation.State(), Pending: s.generation.Pending()}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDocumentSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}
	opts := &keyword.SearchOptions{
		Category: r.URL.Query().Get("category"),
		Fuzzy:    r.URL.Query().Get("fuzzy") == "true",
	}
	docs, err := s.corpus.SearchDocuments(r.Context(), q, limit, opts)
	if err != nil {
		s.logger.Error("document search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "results": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.corpus.Document(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("get document failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
