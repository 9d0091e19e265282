package printshop

import "embed"

// EmbeddedAssets contains the admin dashboard assets: admin.css, admin.js
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
