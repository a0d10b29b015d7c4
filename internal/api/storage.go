package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/storage"
)

// UploadResult is returned by POST /v1/storage/upload
type UploadResult struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// upload stores a multipart "file" under the caller's folder. The
// optional "path" form value names the object inside that folder.
func (r *Router) upload(c *gin.Context) {
	caller := Caller(c)
	if caller == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in to continue"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxObjectSize+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Choose a file to upload"})
		return
	}
	defer file.Close()

	name := c.PostForm("path")
	if name == "" {
		name = path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	}
	stored, err := r.storage.Upload(c.Request.Context(), caller+"/"+name, file)
	if err != nil {
		r.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, UploadResult{Path: stored, URL: r.storage.PublicURL(stored)})
}

func (r *Router) download(c *gin.Context) {
	p := strings.TrimPrefix(c.Param("path"), "/")
	f, err := r.storage.Open(p)
	if err != nil {
		r.storageError(c, err)
		return
	}
	defer f.Close()

	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		c.Header("Content-Type", ct)
	} else {
		c.Header("Content-Type", "application/octet-stream")
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, f); err != nil {
		r.logger.Warn("Object download interrupted", zap.String("path", p), zap.Error(err))
	}
}

func (r *Router) storageError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidArgument:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
			err = storage.ErrObjectTooLarge
		} else {
			r.logger.Error("Storage request failed", zap.Error(err))
		}
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}
