package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ben/grant-pursuit/internal/ai"
	"github.com/ben/grant-pursuit/internal/auth"
	"github.com/ben/grant-pursuit/internal/kv"
	"github.com/ben/grant-pursuit/internal/models"
	"github.com/ben/grant-pursuit/internal/pursuit"
	"github.com/ben/grant-pursuit/internal/search"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const profileKey = "settings:profile"

// Server wires the search, pursuit and AI layers behind an echo API.
// AuthService may be nil (no database configured); mutating routes are then
// left unauthenticated for local use.
type Server struct {
	Echo        *echo.Echo
	Searcher    *search.Searcher
	Pursuits    *pursuit.Store
	Dispatcher  *ai.Dispatcher
	AuthService *auth.Service
	Settings    kv.Store

	profileMu sync.RWMutex
	profile   models.Profile
}

func NewServer(searcher *search.Searcher, pursuits *pursuit.Store, dispatcher *ai.Dispatcher, authService *auth.Service, settings kv.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Echo:        e,
		Searcher:    searcher,
		Pursuits:    pursuits,
		Dispatcher:  dispatcher,
		AuthService: authService,
		Settings:    settings,
	}
	s.loadProfile()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/search", s.handleSearch)
	api.GET("/grants", s.handleListGrants)
	api.GET("/grants/:id", s.handleGetGrant)
	api.GET("/grants/:id/tasks", s.handleGrantTasks)
	api.GET("/grants/:id/budget", s.handleGrantBudget)
	api.GET("/tasks", s.handleListTasks)
	api.GET("/portfolio/context", s.handlePortfolioContext)
	api.GET("/providers", s.handleListProviders)
	api.GET("/profile", s.handleGetProfile)

	if s.AuthService != nil {
		api.POST("/auth/signup", s.handleSignup)
		api.POST("/auth/login", s.handleLogin)
	}

	mutating := api.Group("")
	if s.AuthService != nil {
		mutating.Use(auth.RequireAuth())
	} else {
		log.Print("[API] no database configured; mutating routes are unauthenticated")
	}
	mutating.POST("/grants", s.handleTrackGrant)
	mutating.PATCH("/grants/:id", s.handleUpdateGrant)
	mutating.POST("/grants/:id/stage", s.handleUpdateStage)
	mutating.DELETE("/grants/:id", s.handleDeleteGrant)
	mutating.PATCH("/tasks/:id", s.handleUpdateTask)
	mutating.DELETE("/tasks/:id", s.handleDeleteTask)
	mutating.PUT("/profile", s.handlePutProfile)
	mutating.POST("/ai/dispatch", s.handleDispatch)
	mutating.POST("/providers/active", s.handleSetActiveProvider)
	mutating.POST("/providers/:id/credential", s.handleSetCredential)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Start blocks serving on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

// --- search ---

func (s *Server) handleSearch(c echo.Context) error {
	q := c.QueryParam("q")
	if strings.TrimSpace(q) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "q is required"})
	}

	opts := search.SearchOptions{}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 100 {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		opts.Offset = v
	}
	if v, err := strconv.Atoi(c.QueryParam("min_total")); err == nil && v > 0 {
		opts.MinTotal = v
	}

	result := s.Searcher.Search(c.Request().Context(), q, opts)

	scored := search.ScoreAll(s.currentProfile(), result.Hits)
	filters := filtersFromQuery(c)
	sortKey := search.SortKey(c.QueryParam("sort"))
	if sortKey == "" {
		sortKey = search.SortRelevance
	}
	ranked := search.Rank(scored, sortKey, filters)

	return c.JSON(http.StatusOK, map[string]any{
		"hits":           ranked,
		"total_count":    result.TotalCount,
		"partial_errors": result.PartialErrors,
	})
}

func filtersFromQuery(c echo.Context) search.Filters {
	f := search.Filters{
		Issuer:      c.QueryParam("issuer"),
		Status:      c.QueryParam("status"),
		Instrument:  c.QueryParam("instrument"),
		Category:    c.QueryParam("category"),
		DocType:     c.QueryParam("doc_type"),
		Eligibility: c.QueryParam("eligibility"),
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_amount"), 64); err == nil && v > 0 {
		f.MinAmount = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("max_amount"), 64); err == nil && v > 0 {
		f.MaxAmount = v
	}
	if v, err := strconv.Atoi(c.QueryParam("min_score")); err == nil && v > 0 {
		f.MinScore = v
	}
	if c.QueryParam("open_only") == "true" {
		f.OpenOnly = true
	}
	return f
}

// --- grants ---

func (s *Server) handleTrackGrant(c echo.Context) error {
	var hit models.ScoredHit
	if err := c.Bind(&hit); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if hit.Source == "" || hit.ExternalID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "source and external_id are required"})
	}

	grant, created := s.Pursuits.Track(hit)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, grant)
}

func (s *Server) handleListGrants(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Pursuits.List())
}

func (s *Server) handleGetGrant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	grant, err := s.Pursuits.Get(id)
	if err != nil {
		return s.pursuitError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

type grantUpdateRequest struct {
	Title       *string          `json:"title"`
	Issuer      *string          `json:"issuer"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Amount      *float64         `json:"amount"`
	Deadline    *time.Time       `json:"deadline"`
	Stage       *string          `json:"stage"`
	Outcomes    *models.Outcomes `json:"outcomes"`
}

func (s *Server) handleUpdateGrant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	body, err := readBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	var req grantUpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	patch := pursuit.GrantUpdate{
		Title:       req.Title,
		Issuer:      req.Issuer,
		Description: req.Description,
		Category:    req.Category,
		Amount:      req.Amount,
		Outcomes:    req.Outcomes,
	}
	// Distinguish "deadline absent" from "deadline: null".
	if bodyHasKey(body, "deadline") {
		patch.SetDeadline = true
		patch.Deadline = req.Deadline
	}
	if req.Stage != nil {
		stage, err := models.ParseStage(*req.Stage)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		patch.Stage = &stage
	}

	grant, err := s.Pursuits.Update(id, patch)
	if err != nil {
		return s.pursuitError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

func (s *Server) handleUpdateStage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	var req struct {
		Stage string `json:"stage"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	stage, err := models.ParseStage(req.Stage)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	grant, err := s.Pursuits.UpdateStage(id, stage)
	if err != nil {
		return s.pursuitError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

func (s *Server) handleDeleteGrant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	if err := s.Pursuits.Delete(id); err != nil {
		return s.pursuitError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- tasks & budget ---

func (s *Server) handleGrantTasks(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	if _, err := s.Pursuits.Get(id); err != nil {
		return s.pursuitError(c, err)
	}
	return c.JSON(http.StatusOK, s.Pursuits.TasksFor(id))
}

func (s *Server) handleGrantBudget(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	if _, err := s.Pursuits.Get(id); err != nil {
		return s.pursuitError(c, err)
	}
	return c.JSON(http.StatusOK, s.Pursuits.BudgetFor(id))
}

func (s *Server) handleListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Pursuits.AllTasks())
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	var req struct {
		Title    *string `json:"title"`
		Status   *string `json:"status"`
		Priority *int    `json:"priority"`
		Notes    *string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	patch := pursuit.TaskUpdate{
		Title:    req.Title,
		Priority: req.Priority,
		Notes:    req.Notes,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		switch status {
		case models.TaskTodo, models.TaskInProgress, models.TaskDone:
			patch.Status = &status
		default:
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid task status"})
		}
	}

	task, err := s.Pursuits.UpdateTask(id, patch)
	if err != nil {
		return s.pursuitError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	if err := s.Pursuits.DeleteTask(id); err != nil {
		return s.pursuitError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- profile ---

func (s *Server) handleGetProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, s.currentProfile())
}

func (s *Server) handlePutProfile(c echo.Context) error {
	var p models.Profile
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	s.profileMu.Lock()
	s.profile = p
	s.profileMu.Unlock()

	if s.Settings != nil {
		raw, err := json.Marshal(p)
		if err == nil {
			if err := s.Settings.Set(c.Request().Context(), profileKey, raw); err != nil {
				log.Printf("[API] failed to persist profile: %v", err)
			}
		}
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) currentProfile() models.Profile {
	s.profileMu.RLock()
	defer s.profileMu.RUnlock()
	return s.profile
}

func (s *Server) loadProfile() {
	if s.Settings == nil {
		return
	}
	raw, err := s.Settings.Get(context.Background(), profileKey)
	if err != nil {
		return
	}
	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Printf("[API] stored profile is unreadable, starting empty: %v", err)
		return
	}
	s.profile = p
}

// --- AI ---

func (s *Server) handlePortfolioContext(c echo.Context) error {
	summary := ai.BuildPortfolioContext(
		s.currentProfile(),
		s.Pursuits.List(),
		s.Pursuits.AllTasks(),
		s.Pursuits.Budgets(),
	)
	return c.JSON(http.StatusOK, map[string]string{"context": summary})
}

func (s *Server) handleDispatch(c echo.Context) error {
	var req ai.DispatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if len(req.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "messages are required"})
	}

	reply, err := s.Dispatcher.Dispatch(c.Request().Context(), req)
	if err != nil {
		return s.dispatchError(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) handleListProviders(c echo.Context) error {
	active := s.Dispatcher.ActiveProvider(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{
		"providers": ai.Catalog,
		"active":    active.ID,
	})
}

func (s *Server) handleSetActiveProvider(c echo.Context) error {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := s.Dispatcher.SetActiveProvider(c.Request().Context(), req.Provider); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"active": req.Provider})
}

func (s *Server) handleSetCredential(c echo.Context) error {
	providerID := c.Param("id")
	if _, ok := ai.CatalogFor(providerID); !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown provider"})
	}

	var req struct {
		Credential string `json:"credential"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Credential) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "credential is required"})
	}
	if err := s.Dispatcher.Creds.SetLocalCredential(c.Request().Context(), providerID, req.Credential); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// --- auth ---

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// --- helpers ---

func (s *Server) pursuitError(c echo.Context, err error) error {
	if errors.Is(err, pursuit.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) dispatchError(c echo.Context, err error) error {
	var credErr *ai.CredentialMissingError
	if errors.As(err, &credErr) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": credErr.Error()})
	}
	var upstream *ai.UpstreamError
	if errors.As(err, &upstream) {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": upstream.Error()})
	}
	var malformed *ai.MalformedResponseError
	if errors.As(err, &malformed) {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": malformed.Error()})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func readBody(c echo.Context) ([]byte, error) {
	const maxBody = 1 << 20
	defer c.Request().Body.Close()
	return io.ReadAll(io.LimitReader(c.Request().Body, maxBody))
}

func bodyHasKey(body []byte, key string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	_, ok := probe[key]
	return ok
}
