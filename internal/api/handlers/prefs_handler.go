package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rabmap/internal/api/middleware"
	"rabmap/internal/domain/entities"
	"rabmap/internal/repository"
	"rabmap/internal/services"
	"rabmap/internal/session"
)

type PrefsHandler struct {
	store      repository.PrefsStore
	data       *services.DataService
	reconciler *services.ReconcilerService
	sess       *session.Session
}

func NewPrefsHandler(
	store repository.PrefsStore,
	data *services.DataService,
	reconciler *services.ReconcilerService,
	sess *session.Session,
) *PrefsHandler {
	return &PrefsHandler{
		store:      store,
		data:       data,
		reconciler: reconciler,
		sess:       sess,
	}
}

// Get handles GET /prefs
func (h *PrefsHandler) Get(c *gin.Context) {
	prefs, err := h.store.Get(c.Request.Context(), middleware.GetClientID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

type PrefsRequest struct {
	Layers    entities.LayerFilters `json:"layers"`
	Scope     string                `json:"scope"`
	Collapsed bool                  `json:"collapsed"`
}

// Put handles PUT /prefs
//
// The saved selection is also applied to the live session: a widened scope
// lazily pulls the extension datasets before the next reconciliation runs.
func (h *PrefsHandler) Put(c *gin.Context) {
	var req PrefsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	prefs := entities.Prefs{
		Layers:    req.Layers,
		Scope:     entities.ParseScope(req.Scope),
		Collapsed: req.Collapsed,
	}

	if err := h.store.Set(ctx, middleware.GetClientID(c), prefs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.data.EnsureScope(ctx, prefs.Scope); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	h.sess.SetSelection(prefs.Layers, prefs.Scope)
	if err := h.reconciler.Refresh(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, prefs)
}
