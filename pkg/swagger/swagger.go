// Package swagger отдаёт Swagger UI и OpenAPI документ шлюза.
package swagger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"
)

// Config оформление страницы документации
type Config struct {
	Title        string
	BasePath     string
	SpecPath     string
	DeepLinking  bool
	DocExpansion string
	ModelsDepth  int
}

func DefaultConfig() *Config {
	return &Config{
		Title:        "Siting API",
		BasePath:     "/docs",
		SpecPath:     "/openapi.json",
		DeepLinking:  true,
		DocExpansion: "list",
		ModelsDepth:  1,
	}
}

// Handler обслуживает всё под BasePath. Страница и ETag документа
// считаются один раз при создании.
type Handler struct {
	cfg  Config
	mux  *http.ServeMux
	page []byte
	spec []byte
	etag string
}

// NewHandler собирает маршруты GET (и HEAD) под cfg.BasePath
func NewHandler(cfg *Config, spec []byte) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.BasePath = "/" + strings.Trim(c.BasePath, "/")
	if !strings.HasPrefix(c.SpecPath, "/") {
		c.SpecPath = "/" + c.SpecPath
	}

	page, err := renderPage(c)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(spec)
	h := &Handler{
		cfg:  c,
		mux:  http.NewServeMux(),
		page: page,
		spec: spec,
		etag: `"` + hex.EncodeToString(sum[:8]) + `"`,
	}

	h.mux.HandleFunc("GET "+c.BasePath+"/{$}", h.servePage)
	h.mux.HandleFunc("GET "+c.BasePath+"/index.html", h.servePage)
	h.mux.HandleFunc("GET "+c.BasePath+c.SpecPath, h.serveSpec)
	return h, nil
}

// ETag документа в кавычках, как в заголовке
func (h *Handler) ETag() string { return h.etag }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", time.Time{}, bytes.NewReader(h.page))
}

// serveSpec отвечает 304 на совпавший If-None-Match
func (h *Handler) serveSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", h.etag)
	http.ServeContent(w, r, "openapi.json", time.Time{}, bytes.NewReader(h.spec))
}

// RegisterRoutes вешает документацию на mux; BasePath без слеша перенаправляется
func RegisterRoutes(mux *http.ServeMux, cfg *Config, spec []byte) error {
	h, err := NewHandler(cfg, spec)
	if err != nil {
		return err
	}
	base := h.cfg.BasePath
	mux.Handle(base+"/", h)
	mux.Handle(base, http.RedirectHandler(base+"/", http.StatusMovedPermanently))
	return nil
}

var pageTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body style="margin:0">
<div id="docs"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({
  url: {{.SpecURL}},
  dom_id: "#docs",
  deepLinking: {{.DeepLinking}},
  docExpansion: {{.DocExpansion}},
  defaultModelsExpandDepth: {{.ModelsDepth}},
  validatorUrl: null,
  requestInterceptor: function (req) {
    req.headers["Connect-Protocol-Version"] = "1";
    return req;
  }
});
</script>
</body>
</html>
`))

func renderPage(c Config) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title        string
		SpecURL      string
		DeepLinking  bool
		DocExpansion string
		ModelsDepth  int
	}{c.Title, c.BasePath + c.SpecPath, c.DeepLinking, c.DocExpansion, c.ModelsDepth})
	if err != nil {
		return nil, fmt.Errorf("render docs page: %w", err)
	}
	return buf.Bytes(), nil
}
