// Package web serves the single-page shell at / and /raw/*path, and the
// static files the page loads. Client-side routing handles everything below
// /raw, so every path there gets the same page.
package web

import (
	_ "embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed index.html
var defaultIndex []byte

// Handler serves the page shell.
type Handler struct {
	indexPath string
	// assetRoot is empty when no static files are served
	assetRoot string
}

// NewHandler serves indexPath when it is set and readable, otherwise the
// embedded default page. The file is read per request so edits show up
// without a restart. Files under assetRoot are served by AssetsHandler.
func NewHandler(indexPath, assetRoot string) *Handler {
	if indexPath != "" {
		if _, err := os.Stat(indexPath); err != nil {
			slog.Warn("web.index_path not readable, serving the built-in page", "path", indexPath, "error", err)
		}
	}
	if assetRoot != "" {
		if info, err := os.Stat(assetRoot); err != nil || !info.IsDir() {
			slog.Warn("web asset root is not a directory, static files disabled", "path", assetRoot, "error", err)
			assetRoot = ""
		}
	}
	return &Handler{indexPath: indexPath, assetRoot: assetRoot}
}

func (h *Handler) page() []byte {
	if h.indexPath == "" {
		return defaultIndex
	}
	data, err := os.ReadFile(h.indexPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("failed to read index page", "path", h.indexPath, "error", err)
		}
		return defaultIndex
	}
	return data
}

// IndexHandler serves the page for GET / and GET /raw/*path.
func (h *Handler) IndexHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "text/html; charset=utf-8", h.page())
	}
}

// AssetsHandler serves regular files under the asset root. It is installed
// as the router's NoRoute handler, so anything that is neither a route nor
// an asset gets a JSON 404. Paths under /api and dotfiles are never served.
func (h *Handler) AssetsHandler() gin.HandlerFunc {
	var files http.Handler
	if h.assetRoot != "" {
		files = http.FileServer(http.Dir(h.assetRoot))
	}
	return func(c *gin.Context) {
		method := c.Request.Method
		if files == nil || (method != http.MethodGet && method != http.MethodHead) || !h.isAsset(c.Request.URL.Path) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}

// isAsset reports whether urlPath names a regular, non-hidden file under the
// asset root.
func (h *Handler) isAsset(urlPath string) bool {
	rel := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if rel == "" || rel == "api" || strings.HasPrefix(rel, "api/") {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return false
	}
	info, err := os.Stat(filepath.Join(h.assetRoot, local))
	return err == nil && info.Mode().IsRegular()
}
