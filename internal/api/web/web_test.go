package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newWebRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/", h.IndexHandler())
	r.GET("/raw/*path", h.IndexHandler())
	r.NoRoute(h.AssetsHandler())
	return r
}

func fetch(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestIndexHandler_EmbeddedPage(t *testing.T) {
	r := newWebRouter(NewHandler("", ""))

	for _, path := range []string{"/", "/raw/", "/raw/projects/42", "/raw/a/b/c"} {
		w := fetch(r, path)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", path, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s Content-Type = %q", path, ct)
		}
		if w.Body.String() != string(defaultIndex) {
			t.Errorf("GET %s did not serve the embedded page", path)
		}
	}
}

func TestIndexHandler_CustomPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte("<p>custom</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newWebRouter(NewHandler(path, ""))

	if got := fetch(r, "/raw/x").Body.String(); got != "<p>custom</p>" {
		t.Errorf("body = %q, want custom page", got)
	}

	if err := os.WriteFile(path, []byte("<p>edited</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := fetch(r, "/").Body.String(); got != "<p>edited</p>" {
		t.Errorf("body = %q, want edited page", got)
	}
}

func TestIndexHandler_MissingCustomPageFallsBack(t *testing.T) {
	r := newWebRouter(NewHandler(filepath.Join(t.TempDir(), "missing.html"), ""))
	if got := fetch(r, "/").Body.String(); got != string(defaultIndex) {
		t.Error("missing index_path did not fall back to the embedded page")
	}
}

func TestAssetsHandler_ServesFilesNextToPage(t *testing.T) {
	root := t.TempDir()
	writeFile := func(name, body string) {
		t.Helper()
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeFile("index.html", `<script src="app.js"></script>`)
	writeFile("app.js", "console.log('hi')")
	writeFile("css/style.css", "body{}")
	writeFile(".env", "SECRET=1")
	writeFile("api/leak.txt", "nope")

	r := newWebRouter(NewHandler(filepath.Join(root, "index.html"), root))

	w := fetch(r, "/app.js")
	if w.Code != http.StatusOK || w.Body.String() != "console.log('hi')" {
		t.Fatalf("GET /app.js = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("GET /app.js Content-Type = %q", ct)
	}
	if w := fetch(r, "/css/style.css"); w.Code != http.StatusOK || w.Body.String() != "body{}" {
		t.Errorf("GET /css/style.css = %d %q", w.Code, w.Body.String())
	}
	if got := fetch(r, "/").Body.String(); got != `<script src="app.js"></script>` {
		t.Errorf("GET / = %q, want the configured page", got)
	}

	for _, path := range []string{"/missing.js", "/.env", "/api/leak.txt", "/css"} {
		if w := fetch(r, path); w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/app.js", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("POST /app.js status = %d, want 404", w.Code)
	}
}

func TestAssetsHandler_NoRootIsNotFound(t *testing.T) {
	r := newWebRouter(NewHandler("", ""))
	w := fetch(r, "/app.js")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Not found") {
		t.Errorf("body = %q", w.Body.String())
	}
}
