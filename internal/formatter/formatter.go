package formatter

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Kind is the file kind a piece of code is formatted as.
type Kind string

const (
	KindJS   Kind = "js"
	KindCSS  Kind = "css"
	KindHTML Kind = "html"
)

func loaderFor(kind Kind) (api.Loader, bool) {
	switch kind {
	case KindJS:
		return api.LoaderJS, true
	case KindCSS:
		return api.LoaderCSS, true
	}
	return api.LoaderNone, false
}

// Format pretty-prints code. Unknown kinds and code the printer rejects are
// returned unchanged.
func Format(code string, kind Kind) string {
	out, ok := transform(code, kind, false)
	if !ok {
		return code
	}
	return out
}

// Minify strips insignificant whitespace, returning code unchanged on failure.
func Minify(code string, kind Kind) string {
	out, ok := transform(code, kind, true)
	if !ok {
		return code
	}
	return strings.TrimRight(out, "\n")
}

func transform(code string, kind Kind, minify bool) (string, bool) {
	loader, ok := loaderFor(kind)
	if !ok {
		return "", false
	}
	result := api.Transform(code, api.TransformOptions{
		Loader:           loader,
		MinifyWhitespace: minify,
		LogLevel:         api.LogLevelSilent,
		LegalComments:    api.LegalCommentsInline,
	})
	if len(result.Errors) > 0 {
		return "", false
	}
	return string(result.Code), true
}
