// Package web embeds the static browser UI.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var static embed.FS

// Assets returns the static UI file tree rooted at its contents
func Assets() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		// embed guarantees the directory exists
		panic(err)
	}
	return sub
}
