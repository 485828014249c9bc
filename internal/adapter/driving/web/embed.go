package web

import "embed"

// StaticFS holds the embedded static assets.
//
//go:embed static/*
var StaticFS embed.FS

// TemplateFS holds the embedded HTML templates.
//
//go:embed templates/*
var TemplateFS embed.FS
