package handlers

import (
	"embed"
	"html/template"
)

//go:embed web/index.html web/form.js
var webFS embed.FS

var pageTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

var formScript = mustRead("web/form.js")

func mustRead(name string) []byte {
	b, err := webFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return b
}
