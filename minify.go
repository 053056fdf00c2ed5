package main

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

// Minifier shrinks the text of one file kind.
type Minifier interface {
	Minify(code string) (string, error)
}

var esbuildTargets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

func parseTarget(target string) (api.Target, error) {
	if target == "" {
		return api.ES2020, nil
	}
	t, ok := esbuildTargets[strings.ToLower(target)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unsupported target %q", target)
	}
	return t, nil
}

type esbuildMinifier struct {
	loader api.Loader
	target api.Target
}

func (m esbuildMinifier) Minify(code string) (string, error) {
	result := api.Transform(code, api.TransformOptions{
		Loader:            m.loader,
		Target:            m.target,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsEndOfFile,
		LogLevel:          api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		var errMsgs []string
		for _, msg := range result.Errors {
			if msg.Location != nil {
				errMsgs = append(errMsgs, fmt.Sprintf("%d:%d: %s", msg.Location.Line, msg.Location.Column, msg.Text))
			} else {
				errMsgs = append(errMsgs, msg.Text)
			}
		}
		return "", fmt.Errorf("minify failed: %s", strings.Join(errMsgs, "; "))
	}
	return string(result.Code), nil
}

type htmlMinifier struct {
	m *minify.M
}

func newHTMLMinifier() htmlMinifier {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	return htmlMinifier{m: m}
}

func (h htmlMinifier) Minify(code string) (string, error) {
	out, err := h.m.String("text/html", code)
	if err != nil {
		return "", fmt.Errorf("minify html: %w", err)
	}
	return out, nil
}

// Minifiers groups the minifier of every file kind the optimizer rewrites.
type Minifiers struct {
	JS   Minifier
	CSS  Minifier
	HTML Minifier
}

// NewMinifiers builds esbuild-backed JS and CSS minifiers for target plus an HTML minifier.
func NewMinifiers(target string) (Minifiers, error) {
	t, err := parseTarget(target)
	if err != nil {
		return Minifiers{}, err
	}
	return Minifiers{
		JS:   esbuildMinifier{loader: api.LoaderJS, target: t},
		CSS:  esbuildMinifier{loader: api.LoaderCSS, target: t},
		HTML: newHTMLMinifier(),
	}, nil
}
