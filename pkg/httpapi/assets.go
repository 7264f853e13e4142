package httpapi

import "embed"

//go:embed all:assets
var staticAssets embed.FS
