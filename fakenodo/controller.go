package fakenodo

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type controller struct {
	store *Store
}

type depositionRequest struct {
	Metadata map[string]any `json:"metadata"`
}

func newController(g *gin.RouterGroup, store *Store) *controller {
	a := &controller{store: store}
	g.POST("", a.create)
	g.GET("", a.list)
	g.GET("/:id", a.get)
	g.PUT("/:id", a.update)
	g.DELETE("/:id", a.delete)
	g.POST("/:id/files", a.uploadFile)
	g.POST("/:id/actions/publish", a.publish)
	g.GET("/:id/versions", a.versions)
	return a
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Deposition not found"})
}

func (a *controller) create(c *gin.Context) {
	var req depositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, a.store.Create(req.Metadata))
}

func (a *controller) list(c *gin.Context) {
	c.JSON(http.StatusOK, a.store.List())
}

func (a *controller) get(c *gin.Context) {
	d, ok := a.store.Get(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (a *controller) update(c *gin.Context) {
	var req depositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, ok := a.store.UpdateMetadata(c.Param("id"), req.Metadata)
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (a *controller) delete(c *gin.Context) {
	if !a.store.Delete(c.Param("id")) {
		notFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *controller) uploadFile(c *gin.Context) {
	files, ok := a.store.AddFile(c.Param("id"), c.PostForm("name"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "File added", "files": files})
}

func (a *controller) publish(c *gin.Context) {
	version, ok := a.store.Publish(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusAccepted, version)
}

func (a *controller) versions(c *gin.Context) {
	versions, ok := a.store.Versions(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, versions)
}
