package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"rabmap/internal/services"
	"rabmap/internal/session"
)

type MapHandler struct {
	reconciler *services.ReconcilerService
	sess       *session.Session
}

func NewMapHandler(reconciler *services.ReconcilerService, sess *session.Session) *MapHandler {
	return &MapHandler{
		reconciler: reconciler,
		sess:       sess,
	}
}

// Refresh handles POST /map/refresh
func (h *MapHandler) Refresh(c *gin.Context) {
	if err := h.reconciler.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	count, _ := h.sess.Registry.Count(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"markers": count,
	})
}

// Viewport handles GET /map/viewport?west=&south=&east=&north=&zoom=
//
// The reported window becomes the session viewport, a reconciliation pass
// runs against it, and the query result comes back as a GeoJSON
// FeatureCollection of clusters and individual points.
func (h *MapHandler) Viewport(c *gin.Context) {
	west, errW := strconv.ParseFloat(c.Query("west"), 64)
	south, errS := strconv.ParseFloat(c.Query("south"), 64)
	east, errE := strconv.ParseFloat(c.Query("east"), 64)
	north, errN := strconv.ParseFloat(c.Query("north"), 64)
	zoom, errZ := strconv.Atoi(c.Query("zoom"))
	if errW != nil || errS != nil || errE != nil || errN != nil || errZ != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "west, south, east, north and zoom are required"})
		return
	}
	if west >= east || south >= north {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty viewport"})
		return
	}

	vp := session.Viewport{
		Bound: orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}},
		Zoom:  zoom,
	}
	h.sess.SetViewport(vp)

	if err := h.reconciler.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	queryZoom := vp.Zoom
	if !h.sess.ClusteringEnabled() {
		queryZoom = h.sess.Index.MaxZoom() + 1
	}
	nodes := h.sess.Index.Query(vp.Bound, queryZoom)

	fc := geojson.NewFeatureCollection()
	for _, n := range nodes {
		f := geojson.NewFeature(orb.Point{n.Location.Lng, n.Location.Lat})
		if n.IsCluster() {
			f.Properties = geojson.Properties{
				"cluster":    true,
				"clusterId":  n.ClusterID,
				"pointCount": n.Count,
			}
		} else {
			f.Properties = geojson.Properties{
				"cluster":   false,
				"featureId": n.Feature.ID,
				"layer":     string(n.Feature.Layer),
				"iconKind":  n.Feature.Render.IconKind,
			}
		}
		fc.Append(f)
	}

	c.JSON(http.StatusOK, fc)
}

// Activate handles POST /map/markers/:id/activate
func (h *MapHandler) Activate(c *gin.Context) {
	markerID := c.Param("id")

	result, err := h.reconciler.ActivateCluster(c.Request.Context(), markerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type InteractionRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// Interaction handles POST /map/interaction
//
// The client reports gesture start/end so marker churn pauses while the user
// is mid pan/zoom. Ending a gesture replays any refresh deferred during it.
func (h *MapHandler) Interaction(c *gin.Context) {
	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if *req.Active {
		h.sess.SetInteracting(true)
		c.JSON(http.StatusOK, gin.H{"interacting": true})
		return
	}

	if err := h.reconciler.EndInteraction(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interacting": false})
}

// Markers handles GET /debug/markers (for debugging/testing)
func (h *MapHandler) Markers(c *gin.Context) {
	markers, err := h.sess.Registry.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(markers),
		"markers": markers,
	})
}
