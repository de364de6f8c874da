// files.go serves signed log export downloads for storage backends that do not hand out
// their own URLs (the local filesystem backend).
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/api/response"
	"github.com/mailnow/mailnow-admin/internal/storage"
)

// fileDownloadHandler streams the object named by the URL once its expiry and signature
// check out. The link itself is the credential, so no session is required.
// GET /api/v1/files/*filepath?expires=<unix>&signature=<hex>
func fileDownloadHandler(store storage.Storage, verifier storage.URLVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		filePath := strings.TrimPrefix(c.Param("filepath"), "/")
		if filePath == "" {
			response.BadRequest(c, "File path is required")
			return
		}

		if err := verifier.VerifyURL(filePath, c.Query("expires"), c.Query("signature"), time.Now()); err != nil {
			response.Abort(c, http.StatusForbidden, "Download link is invalid or has expired")
			return
		}

		reader, err := store.Download(c.Request.Context(), filePath)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				response.Abort(c, http.StatusNotFound, "File not found")
				return
			}
			slog.Error("failed to open export", "path", filePath, "error", err)
			response.Abort(c, http.StatusInternalServerError, "Failed to read file")
			return
		}
		defer reader.Close()

		c.DataFromReader(http.StatusOK, -1, storage.ContentType(filePath), reader, map[string]string{
			"Content-Disposition": `attachment; filename="` + path.Base(filePath) + `"`,
			"Cache-Control":       "no-store",
		})
	}
}
