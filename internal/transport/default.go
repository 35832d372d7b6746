package transport

import (
	"cmdnice/internal/cache"
	"cmdnice/internal/cssimport"
	"cmdnice/internal/graph"

	"github.com/charmbracelet/log"
)

type RegistryOptions struct {
	Walker   *graph.Walker
	Cache    *cache.Cache
	Inliner  *cssimport.Inliner
	Beautify bool
	Logger   *log.Logger
}

// DefaultRegistry binds the built-in compilers:
//
//	.js                 Script
//	.json               JSON
//	.html, .txt, .tpl   Text
//	.css                Style
func DefaultRegistry(opts RegistryOptions) *Registry {
	r := opts.Walker.Resolver()
	reg := NewRegistry()
	reg.Register(r.Extension(), NewScript(ScriptOptions{
		Walker:   opts.Walker,
		Cache:    opts.Cache,
		Beautify: opts.Beautify,
		Logger:   opts.Logger,
	}))
	reg.Register(".json", JSON{Resolver: r, Beautify: opts.Beautify})
	text := Text{Resolver: r, Beautify: opts.Beautify}
	for _, ext := range []string{".html", ".txt", ".tpl"} {
		reg.Register(ext, text)
	}
	reg.Register(".css", Style{Resolver: r, Inliner: opts.Inliner, Beautify: opts.Beautify})
	return reg
}
