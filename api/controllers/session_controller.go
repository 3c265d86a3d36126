package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/gfpgan-client/fileset"
	"github.com/moyoez/gfpgan-client/preview"
	"github.com/moyoez/gfpgan-client/session"
	"github.com/moyoez/gfpgan-client/tool"
	"github.com/moyoez/gfpgan-client/types"
)

// DefaultMaxUploadBytes bounds one file received by the control server.
const DefaultMaxUploadBytes = 64 << 20

// SessionController exposes the upload session to a local UI.
type SessionController struct {
	session   *session.Manager
	previews  *preview.Registry
	maxUpload int64
}

func NewSessionController(m *session.Manager, previews *preview.Registry) *SessionController {
	return &SessionController{session: m, previews: previews, maxUpload: DefaultMaxUploadBytes}
}

// HandleState returns counts, files, submission state and restored images.
func (ctrl *SessionController) HandleState(c *gin.Context) {
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.session.Snapshot()))
}

// HandleAddFiles stages every files[] part of a multipart body.
func (ctrl *SessionController) HandleAddFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid multipart body: "+err.Error()))
		return
	}
	headers := form.File[types.FilesFieldName]
	blobs := make([]fileset.Blob, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > ctrl.maxUpload {
			c.JSON(http.StatusRequestEntityTooLarge, tool.FastReturnError("File too large: "+fh.Filename))
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to read "+fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to read "+fh.Filename))
			return
		}
		blobs = append(blobs, fileset.NewBytesBlob(fh.Filename, data))
	}
	ctrl.session.AddFiles(blobs...)
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.session.Snapshot()))
}

// HandleRemoveFile unstages :name; ?remote=true also asks the server to drop it.
func (ctrl *SessionController) HandleRemoveFile(c *gin.Context) {
	name := c.Param("name")
	if remote, _ := strconv.ParseBool(c.Query("remote")); remote {
		if err := ctrl.session.RemoveRemote(c.Request.Context(), name); err != nil {
			c.JSON(http.StatusBadGateway, tool.FastReturnError(err.Error()))
			return
		}
	} else {
		ctrl.session.RemoveFile(name)
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.session.Snapshot()))
}

// HandleClear clears the server history and the session; ?remote=false keeps the server untouched.
func (ctrl *SessionController) HandleClear(c *gin.Context) {
	remote := true
	if v := c.Query("remote"); v != "" {
		remote, _ = strconv.ParseBool(v)
	}
	if remote {
		if err := ctrl.session.ClearRemote(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, tool.FastReturnError(err.Error()))
			return
		}
	} else {
		ctrl.session.Clear()
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleSubmit starts a submission and answers 202 without waiting for it.
func (ctrl *SessionController) HandleSubmit(c *gin.Context) {
	var opts types.SubmitOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid request body"))
			return
		}
	}
	// the submission outlives this request
	if _, err := ctrl.session.Submit(context.Background(), opts); err != nil {
		switch {
		case errors.Is(err, session.ErrSubmissionInFlight):
			c.JSON(http.StatusConflict, tool.FastReturnError(err.Error()))
		case errors.Is(err, session.ErrEmptyFileSet):
			c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
		}
		return
	}
	c.JSON(http.StatusAccepted, tool.FastReturnSuccessWithData(ctrl.session.Snapshot()))
}

// HandlePreview streams the bytes behind a live preview handle.
func (ctrl *SessionController) HandlePreview(c *gin.Context) {
	rc, contentType, err := ctrl.previews.Open(preview.Handle(c.Param("handle")))
	if err != nil {
		c.JSON(http.StatusNotFound, tool.FastReturnError(err.Error()))
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

// HandleArtifact proxies one restored image from the server.
func (ctrl *SessionController) HandleArtifact(c *gin.Context) {
	data, err := ctrl.session.Artifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, tool.FastReturnError(err.Error()))
		return
	}
	c.Data(http.StatusOK, tool.DetectContentType(c.Param("id"), data), data)
}

// HandleDownloadAll saves the results archive into the download folder.
func (ctrl *SessionController) HandleDownloadAll(c *gin.Context) {
	path, err := ctrl.session.DownloadAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, tool.FastReturnError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(gin.H{"path": path}))
}
