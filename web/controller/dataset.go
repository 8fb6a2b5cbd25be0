package controller

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/entity"
	"github.com/gameshub/uvlhub/web/middleware"
	"github.com/gameshub/uvlhub/web/service"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	downloadCookie = "download_cookie"
	viewCookie     = "view_cookie"
)

// DatasetController handles dataset upload, listing, download and the DOI
// landing pages.
type DatasetController struct {
	BaseController

	datasets        *service.DatasetService
	comments        *service.CommentService
	recommendations *service.RecommendationService
}

func NewDatasetController(g *gin.RouterGroup, s *service.Services) *DatasetController {
	a := &DatasetController{
		datasets:        s.Datasets,
		comments:        s.Comments,
		recommendations: s.Recommendations,
	}
	a.initRouter(g)
	return a
}

func (a *DatasetController) initRouter(g *gin.RouterGroup) {
	g.GET("/dataset/download/:id", a.download)
	g.GET("/doi/*doi", a.doi)
	g.GET("/hubfile/:id/check_csv", a.checkCSV)

	auth := g.Group("/dataset", middleware.LoginRequired())
	auth.GET("/upload", a.uploadPage)
	auth.POST("/upload", a.create)
	auth.POST("/file/upload", a.uploadFile)
	auth.POST("/file/delete", a.deleteFile)
	auth.GET("/list", a.list)
	auth.GET("/unsynchronized/:id", a.unsynchronized)
}

func (a *DatasetController) uploadPage(c *gin.Context) {
	files, err := a.datasets.ListTempFiles(session.GetLoginUser(c).Id)
	if err != nil {
		logger.Warning("unable to list staged files:", err)
	}
	html(c, "dataset_upload.html", "pages.dataset.uploadTitle", gin.H{
		"files":            files,
		"publicationTypes": model.PublicationTypes,
	})
}

// bindDatasetForm accepts a JSON body or a form post. Form posts send
// authors as parallel author_name, author_affiliation and author_orcid
// fields.
func bindDatasetForm(c *gin.Context) (service.DatasetForm, error) {
	var form service.DatasetForm
	if err := c.ShouldBind(&form); err != nil {
		return form, err
	}
	if len(form.Authors) == 0 {
		names := c.PostFormArray("author_name")
		affiliations := c.PostFormArray("author_affiliation")
		orcids := c.PostFormArray("author_orcid")
		for i, name := range names {
			author := service.AuthorForm{Name: name}
			if i < len(affiliations) {
				author.Affiliation = affiliations[i]
			}
			if i < len(orcids) {
				author.Orcid = orcids[i]
			}
			form.Authors = append(form.Authors, author)
		}
	}
	return form, nil
}

func (a *DatasetController) create(c *gin.Context) {
	user := session.GetLoginUser(c)
	form, err := bindDatasetForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ds, err := a.datasets.Create(c.Request.Context(), user, form)
	if err != nil {
		logger.Warning("create dataset failed:", err)
		c.JSON(statusFor(err), gin.H{"message": err.Error()})
		return
	}

	result, err := a.datasets.Deposit(c.Request.Context(), ds)
	if err != nil {
		logger.Warningf("deposition of dataset %d failed: %v", ds.Id, err)
		if result == nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"message": I18nWeb(c, "flash.depositFailed"),
				"error":   err.Error(),
				"dataset": ds.Id,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":      I18nWeb(c, "flash.depositIncomplete"),
			"error":        err.Error(),
			"dataset":      ds.Id,
			"depositionId": result.DepositionId,
		})
		return
	}

	body := gin.H{
		"message":      I18nWeb(c, "flash.datasetCreated"),
		"dataset":      ds.Id,
		"depositionId": result.DepositionId,
	}
	if result.Doi != "" {
		body["dataset_doi"] = result.Doi
		body["doi_url"] = ds.DoiURL(requestHost(c))
		body["doi_resolver_url"] = "https://doi.org/" + result.Doi
	}
	c.JSON(http.StatusOK, body)
}

func (a *DatasetController) uploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": I18nWeb(c, "flash.invalidCsv")})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	defer f.Close()

	name, err := a.datasets.SaveTempFile(session.GetLoginUser(c).Id, fh.Filename, f)
	var mismatch *service.HeaderMismatchError
	switch {
	case errors.As(err, &mismatch):
		c.JSON(http.StatusBadRequest, gin.H{
			"message":         I18nWeb(c, "flash.csvHeaderMismatch"),
			"expected_header": service.ExpectedCSVHeader,
			"received_header": mismatch.Received,
		})
		return
	case errors.Is(err, service.ErrInvalidCSV):
		c.JSON(http.StatusBadRequest, gin.H{"message": I18nWeb(c, "flash.invalidCsv"), "error": err.Error()})
		return
	case err != nil:
		logger.Error("store uploaded file failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  I18nWeb(c, "flash.csvUploaded"),
		"filename": name,
	})
}

func (a *DatasetController) deleteFile(c *gin.Context) {
	var form entity.DeleteFileForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": I18nWeb(c, "flash.invalidForm")})
		return
	}
	err := a.datasets.DeleteTempFile(session.GetLoginUser(c).Id, form.File)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": I18nWeb(c, "flash.fileNotFound")})
		return
	} else if err != nil {
		logger.Error("delete staged file failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": I18nWeb(c, "flash.fileDeleted")})
}

func (a *DatasetController) list(c *gin.Context) {
	user := session.GetLoginUser(c)
	synced, err := a.datasets.GetSynchronized(user.Id)
	if err != nil {
		a.fail(c, err)
		return
	}
	unsynced, err := a.datasets.GetUnsynchronized(user.Id)
	if err != nil {
		a.fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		jsonObj(c, gin.H{"synchronized": synced, "unsynchronized": unsynced}, nil)
		return
	}
	html(c, "dataset_list.html", "pages.dataset.listTitle", gin.H{
		"synchronized":   synced,
		"unsynchronized": unsynced,
	})
}

func (a *DatasetController) download(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ds, err := a.datasets.GetById(id)
	if err != nil {
		c.AbortWithStatus(statusFor(err))
		return
	}
	var buf bytes.Buffer
	if err := a.datasets.WriteZip(ds, &buf); err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			logger.Error("build dataset archive failed:", err)
		}
		c.AbortWithStatus(statusFor(err))
		return
	}

	cookie := trackingCookie(c, downloadCookie)
	if _, err := a.datasets.RecordDownload(c.Request.Context(), currentUserId(c), ds.Id, cookie, timeNow()); err != nil {
		logger.Warning("record download failed:", err)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="dataset_%d.zip"`, ds.Id))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func (a *DatasetController) checkCSV(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	problems, err := a.datasets.CheckCSV(id, currentUserId(c))
	var parseErr *service.CSVParseError
	switch {
	case errors.As(err, &parseErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": parseErr.Error()})
	case err != nil:
		if !errors.Is(err, service.ErrNotFound) {
			logger.Error("check csv failed:", err)
		}
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
	case len(problems) > 0:
		c.JSON(http.StatusBadRequest, gin.H{"errors": problems})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Valid CSV"})
	}
}

func (a *DatasetController) doi(c *gin.Context) {
	doi := strings.Trim(c.Param("doi"), "/")
	if doi == "" {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	target, moved, err := a.datasets.ResolveDoi(doi)
	if err != nil {
		logger.Error("resolve doi failed:", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if moved {
		c.Redirect(http.StatusFound, "/doi/"+target)
		return
	}
	ds, err := a.datasets.GetByDoi(doi)
	if err != nil {
		c.AbortWithStatus(statusFor(err))
		return
	}
	cookie := trackingCookie(c, viewCookie)
	if err := a.datasets.RecordView(currentUserId(c), ds.Id, cookie, timeNow()); err != nil {
		logger.Warning("record view failed:", err)
	}
	a.render(c, ds)
}

func (a *DatasetController) unsynchronized(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ds, err := a.datasets.GetUnsynchronizedDataset(session.GetLoginUser(c).Id, id)
	if err != nil {
		c.AbortWithStatus(statusFor(err))
		return
	}
	a.render(c, ds)
}

// render shows a dataset with its counters, comments and recommendations.
func (a *DatasetController) render(c *gin.Context, ds *model.DataSet) {
	user := session.GetLoginUser(c)
	comments, err := a.comments.List(ds.Id, user.CanModerate())
	if err != nil {
		logger.Warning("load comments failed:", err)
	}
	downloads, _ := a.datasets.CountDownloads(ds.Id)
	views, _ := a.datasets.CountViews(ds.Id)
	recommended, err := a.recommendations.Recommend(c.Request.Context(), ds.Id)
	if err != nil {
		logger.Warning("load recommendations failed:", err)
	}
	data := gin.H{
		"dataset":     ds,
		"comments":    comments,
		"downloads":   downloads,
		"views":       views,
		"recommended": recommended,
		"doi_url":     ds.DoiURL(requestHost(c)),
	}
	if middleware.WantsJSON(c) {
		jsonObj(c, data, nil)
		return
	}
	html(c, "dataset_view.html", ds.DSMetaData.Title, data)
}

// trackingCookie returns the value of the named cookie, setting a fresh
// uuid when the client has none.
func trackingCookie(c *gin.Context, name string) string {
	if v, err := c.Cookie(name); err == nil && v != "" {
		return v
	}
	v := uuid.NewString()
	c.SetCookie(name, v, 0, "/", "", false, true)
	return v
}

func currentUserId(c *gin.Context) *int {
	if user := session.GetLoginUser(c); user != nil {
		id := user.Id
		return &id
	}
	return nil
}

func requestHost(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return scheme + "://" + host
}
