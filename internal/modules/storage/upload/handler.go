package upload

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadSize = 20 << 20

var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
	"audio/mpeg": ".mp3",
}

type Handler struct {
	uploader Uploader
	now      func() time.Time
}

// NewHandler returns a handler that answers 503 when uploader is nil.
func NewHandler(uploader Uploader) *Handler {
	return &Handler{uploader: uploader, now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.POST("/uploads", authMW, h.upload)
}

type uploadedFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int    `json:"size"`
	Type string `json:"type"`
}

// upload accepts one or more "file" parts.
func (h *Handler) upload(c *gin.Context) {
	if h.uploader == nil {
		response.ServiceUnavailable(c, ErrNotConfigured.Error())
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "invalid multipart form")
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		response.BadRequest(c, "no file provided")
		return
	}

	out := make([]uploadedFile, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		contentType := http.DetectContentType(data)
		ext, ok := allowedTypes[contentType]
		if !ok {
			response.UnprocessableEntity(c, fmt.Sprintf("%s: unsupported file type %s", fh.Filename, contentType))
			return
		}
		key := objectKeyFor(middleware.CurrentUserID(c), h.now(), ext)
		publicURL, err := h.uploader.Upload(c.Request.Context(), key, data, contentType)
		if err != nil {
			response.BadGateway(c, "upload failed: "+err.Error(), nil)
			return
		}
		out = append(out, uploadedFile{Name: fh.Filename, URL: publicURL, Size: len(data), Type: contentType})
	}
	response.Created(c, gin.H{"files": out})
}

// objectKeyFor lays objects out per user and month.
func objectKeyFor(userID string, now time.Time, ext string) string {
	owner := strings.TrimSpace(userID)
	if owner == "" {
		owner = "anonymous"
	}
	return path.Join("uploads", owner, now.UTC().Format("2006/01"), uuid.NewString()+ext)
}
