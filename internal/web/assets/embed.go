package assets

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var static embed.FS

// StaticFS returns the public site stylesheet and images.
func StaticFS() (fs.FS, error) {
	return fs.Sub(static, "static")
}
