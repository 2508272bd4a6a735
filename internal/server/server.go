// Package server exposes the synthesis pipeline over HTTP.
package server

import (
	"errors"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"

	"github.com/voxbr/tts-gateway/internal/core"
	"github.com/voxbr/tts-gateway/internal/health"
	"github.com/voxbr/tts-gateway/internal/pipeline"
	"github.com/voxbr/tts-gateway/internal/voices"
)

// synthesizeRequest is the JSON body of POST /v1/tts/synthesize.
type synthesizeRequest struct {
	Text     string `json:"text"`
	VoiceID  string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format,omitempty"`
}

// synthesizeResponse is the success payload.
type synthesizeResponse struct {
	ArtifactID string `json:"artifact_id"`
	URL        string `json:"url"`
	Format     string `json:"format"`
	SizeBytes  int64  `json:"size_bytes"`
	DurationMS int64  `json:"duration_ms"`
}

// errorResponse carries the stable failure kind plus a human-readable detail.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// voicesResponse is the payload of GET /v1/voices/available.
type voicesResponse struct {
	Voices []core.VoiceProfile `json:"voices"`
	Total  int                 `json:"total"`
}

// Server wires the gin router to the pipeline, registry, store and reporter.
type Server struct {
	router   *gin.Engine
	pipe     *pipeline.Pipeline
	registry *voices.Registry
	store    core.ArtifactStore
	reporter *health.Reporter
	log      *logger.Logger
}

// New builds the HTTP server and registers all routes.
func New(
	pipe *pipeline.Pipeline,
	registry *voices.Registry,
	store core.ArtifactStore,
	reporter *health.Reporter,
	log *logger.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		router:   gin.New(),
		pipe:     pipe,
		registry: registry,
		store:    store,
		reporter: reporter,
		log:      log,
	}

	server.router.Use(gin.Recovery())

	server.router.POST("/v1/tts/synthesize", server.handleSynthesize)
	server.router.GET("/v1/tts/audio/:id", server.handleAudio)
	server.router.GET("/v1/voices/available", server.handleVoices)
	server.router.GET("/health", server.handleHealth)

	return server
}

// Handler exposes the router for tests and for http.Server wiring.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleSynthesize(c *gin.Context) {
	var req synthesizeRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:  string(core.FailureValidation),
			Detail: "malformed request body: " + err.Error(),
		})

		return
	}

	result, err := s.pipe.Synthesize(c.Request.Context(), pipeline.Input{
		Text:     req.Text,
		VoiceID:  req.VoiceID,
		Language: req.Language,
		Format:   req.Format,
	})
	if err != nil {
		kind := core.KindOf(err)
		c.JSON(statusFor(kind), errorResponse{
			Error:  string(kind),
			Detail: err.Error(),
		})

		return
	}

	c.JSON(http.StatusOK, synthesizeResponse{
		ArtifactID: result.Artifact.ID,
		URL:        "/v1/tts/audio/" + result.Artifact.ID,
		Format:     string(result.Artifact.Format),
		SizeBytes:  result.Artifact.SizeBytes,
		DurationMS: result.Duration.Milliseconds(),
	})
}

func (s *Server) handleAudio(c *gin.Context) {
	artifactID := c.Param("id")

	reader, meta, err := s.store.Open(artifactID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrArtifactNotFound) || !s.store.Exists(artifactID) {
			status = http.StatusNotFound
		}

		c.JSON(status, errorResponse{
			Error:  "ArtifactNotFound",
			Detail: err.Error(),
		})

		return
	}

	defer func() {
		closeErr := reader.Close()
		if closeErr != nil {
			s.log.Warn("Failed to close artifact reader for '%s': %v", artifactID, closeErr)
		}
	}()

	c.DataFromReader(http.StatusOK, meta.SizeBytes, meta.Format.ContentType(), reader, nil)
}

func (s *Server) handleVoices(c *gin.Context) {
	filter := voices.Filter{
		Language: c.Query("language"),
		Backend:  core.Backend(c.Query("backend")),
	}

	matches := s.registry.List(filter)

	c.JSON(http.StatusOK, voicesResponse{
		Voices: matches,
		Total:  len(matches),
	})
}

// handleHealth always answers 200; degraded states are expressed in the body.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.reporter.Report(c.Request.Context()))
}

// statusFor maps a failure kind to its HTTP status code.
func statusFor(kind core.FailureKind) int {
	switch kind {
	case core.FailureValidation, core.FailureVoiceNotFound:
		return http.StatusBadRequest
	case core.FailureEngineRejected:
		return http.StatusUnprocessableEntity
	case core.FailureEngineTimeout:
		return http.StatusGatewayTimeout
	case core.FailureEngineUnavailable, core.FailureSynthesis:
		return http.StatusBadGateway
	case core.FailurePersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
