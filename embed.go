package podengine

import "embed"

// EmbeddedAssets contains static assets shipped with the framework:
// player.js (trailer and episode player) and site.css.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
