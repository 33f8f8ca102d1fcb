package assets

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var static embed.FS

// StaticFS returns the admin stylesheet and scripts.
func StaticFS() (fs.FS, error) {
	return fs.Sub(static, "static")
}
