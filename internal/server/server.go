// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/mabquiz/internal/analytics"
	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/armsync"
	"github.com/abhisek/mabquiz/internal/config"
	"github.com/abhisek/mabquiz/internal/logger"
	"github.com/abhisek/mabquiz/internal/posterior"
	"github.com/abhisek/mabquiz/internal/selection"
)

// Deps are the engine components the server routes to.
type Deps struct {
	Updater    *posterior.Updater
	Selector   *selection.Selector
	Projection *analytics.Projection
	Reconciler *armsync.Reconciler
	Analytics  config.AnalyticsConfig
	Log        *logger.Logger

	// MaxSyncBytes bounds a sync request body. Zero means DefaultMaxSyncBytes.
	MaxSyncBytes int64
}

// DefaultMaxSyncBytes is the sync body limit used when Deps leaves it unset.
const DefaultMaxSyncBytes = 8 << 20

type Server struct {
	deps Deps
	log  *logger.Logger
}

func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Server{deps: deps, log: log.With("component", "server")}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		learner := v1.Group("/learners/:learner")
		{
			learner.POST("/outcomes", s.recordOutcome)
			learner.POST("/next", s.selectNext)
			learner.DELETE("", s.reset)
			learner.GET("/questions/:question", s.getQuestion)
			learner.GET("/topics/:topic", s.getTopic)

			stats := learner.Group("/analytics")
			{
				stats.GET("/weak-questions", s.weakQuestions)
				stats.GET("/weak-topics", s.weakTopics)
				stats.GET("/best-topics", s.bestTopics)
				stats.GET("/stats", s.aggregateStats)
			}

			learner.POST("/sync", s.exchange)
			learner.GET("/sync/status", s.syncStatus)
		}
	}
	return router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type outcomeRequest struct {
	QuestionID     string        `json:"questionId"`
	TopicKey       string        `json:"topicKey"`
	Topic          *arm.TopicRef `json:"topic"`
	Correct        bool          `json:"correct"`
	ResponseTimeMs int64         `json:"responseTimeMs"`
	Confidence     *float64      `json:"confidence"`
}

type outcomeResponse struct {
	QuestionArm arm.Record `json:"questionArm"`
	TopicArm    arm.Record `json:"topicArm"`
}

func (s *Server) recordOutcome(c *gin.Context) {
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	confidence := 0.5
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	q, t, err := s.deps.Updater.RecordOutcome(c.Request.Context(), posterior.Outcome{
		LearnerID:      c.Param("learner"),
		QuestionID:     req.QuestionID,
		TopicKey:       req.TopicKey,
		Topic:          req.Topic,
		Correct:        req.Correct,
		ResponseTimeMs: req.ResponseTimeMs,
		Confidence:     confidence,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeResponse{QuestionArm: q.Record(), TopicArm: t.Record()})
}

type nextRequest struct {
	Candidates []selection.Candidate `json:"candidates"`
	Explain    bool                  `json:"explain"`
}

type nextResponse struct {
	QuestionID string            `json:"questionId"`
	Scores     []selection.Score `json:"scores,omitempty"`
}

func (s *Server) selectNext(c *gin.Context) {
	var req nextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx := c.Request.Context()
	learnerID := c.Param("learner")

	if req.Explain {
		scores, err := s.deps.Selector.Rank(ctx, learnerID, req.Candidates)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, nextResponse{QuestionID: scores[0].QuestionID, Scores: scores})
		return
	}
	id, err := s.deps.Selector.SelectNext(ctx, learnerID, req.Candidates)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, nextResponse{QuestionID: id})
}

func (s *Server) reset(c *gin.Context) {
	learnerID := c.Param("learner")
	if err := s.deps.Updater.Reset(c.Request.Context(), learnerID); err != nil {
		respondEngineError(c, err)
		return
	}
	if err := s.deps.Reconciler.ForgetCheckpoint(c.Request.Context(), learnerID); err != nil {
		respondEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getQuestion(c *gin.Context) {
	row, err := s.deps.Projection.Question(c.Request.Context(), c.Param("learner"), c.Param("question"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) getTopic(c *gin.Context) {
	row, err := s.deps.Projection.Topic(c.Request.Context(), c.Param("learner"), c.Param("topic"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) weakQuestions(c *gin.Context) {
	minAttempts, threshold, ok := s.weakParams(c)
	if !ok {
		return
	}
	rows, err := s.deps.Projection.WeakQuestions(c.Request.Context(), c.Param("learner"), minAttempts, threshold)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": nonNil(rows)})
}

func (s *Server) weakTopics(c *gin.Context) {
	minAttempts, threshold, ok := s.weakParams(c)
	if !ok {
		return
	}
	rows, err := s.deps.Projection.WeakTopics(c.Request.Context(), c.Param("learner"), minAttempts, threshold)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": nonNil(rows)})
}

func (s *Server) bestTopics(c *gin.Context) {
	minAttempts, ok := intQuery(c, "minAttempts", s.deps.Analytics.MinAttempts)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", s.deps.Analytics.BestLimit)
	if !ok {
		return
	}
	rows, err := s.deps.Projection.BestTopics(c.Request.Context(), c.Param("learner"), minAttempts, limit)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": nonNil(rows)})
}

func (s *Server) aggregateStats(c *gin.Context) {
	stats, err := s.deps.Projection.AggregateStats(c.Request.Context(), c.Param("learner"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type syncResponse struct {
	armsync.Batch
	ConflictsResolved int `json:"conflictsResolved"`
}

// exchange takes the client's batch (Since = its last sync time) and answers
// with every arm written after that time.
func (s *Server) exchange(c *gin.Context) {
	learnerID := c.Param("learner")
	limit := s.deps.MaxSyncBytes
	if limit <= 0 {
		limit = DefaultMaxSyncBytes
	}
	batch, err := armsync.DecodeBatch(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "batch_too_large", err)
			return
		}
		respondError(c, http.StatusBadRequest, "bad_batch", err)
		return
	}
	if batch.LearnerID != learnerID {
		respondError(c, http.StatusBadRequest, "bad_batch", errors.New("batch learner does not match path"))
		return
	}
	delta, err := batch.Delta()
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resp, err := s.deps.Reconciler.Exchange(c.Request.Context(), learnerID, armsync.Request{
		LastSyncTime: batch.Since,
		Delta:        delta,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	out := armsync.NewBatch(learnerID, batch.Since, resp.ServerTime, resp.Delta)
	c.JSON(http.StatusOK, syncResponse{Batch: out, ConflictsResolved: resp.ConflictsResolved})
}

func (s *Server) syncStatus(c *gin.Context) {
	since, ok := int64Query(c, "since", 0)
	if !ok {
		return
	}
	pending, err := s.deps.Reconciler.PendingCount(c.Request.Context(), c.Param("learner"), since)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, pending)
}

func (s *Server) weakParams(c *gin.Context) (int, float64, bool) {
	minAttempts, ok := intQuery(c, "minAttempts", s.deps.Analytics.MinAttempts)
	if !ok {
		return 0, 0, false
	}
	threshold := s.deps.Analytics.WeakThreshold
	if v := c.Query("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "bad_request", err)
			return 0, 0, false
		}
		threshold = f
	}
	return minAttempts, threshold, true
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return 0, false
	}
	return n, true
}

func int64Query(c *gin.Context, name string, def int64) (int64, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return 0, false
	}
	return n, true
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
