// Package web holds the embedded views and static assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

// Layout is the name of the layout every page renders into.
const Layout = "layouts/main"

//go:embed views
var views embed.FS

//go:embed static
var static embed.FS

// NewViewEngine parses the embedded templates with the helper funcs.
func NewViewEngine() *html.Engine {
	sub, err := fs.Sub(views, "views")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFuncMap(FuncMap())
	return engine
}

// Static exposes css/ and js/ at the root of the returned file system.
func Static() http.FileSystem {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
