package main

import (
	"path/filepath"
	"strings"
)

type ResolvedImportType uint8

const (
	UserModule ResolvedImportType = iota
	RemoteModule
	DataURLModule
	PackageModule // bare specifier; package resolution is left to the bundler that produced the build
)

// CSS-proxy modules are generated JS stand-ins for CSS files
const (
	cssProxySuffix  = ".css.proxy.js"
	proxySuffix     = ".proxy.js"
	cssModuleSuffix = ".module.css"
)

func isCSSProxy(specifierOrPath string) bool {
	return strings.HasSuffix(specifierOrPath, cssProxySuffix)
}

// cssPathForProxy derives the CSS file a proxy module stands in for.
func cssPathForProxy(proxyPath string) string {
	return strings.TrimSuffix(proxyPath, proxySuffix)
}

// isRemoteModule determines if the specifier points outside of the build
func isRemoteModule(specifier string) bool {
	return strings.HasPrefix(specifier, "//") ||
		strings.HasPrefix(specifier, "http://") ||
		strings.HasPrefix(specifier, "https://")
}

// removeLeadingSlash removes \ and / from the beginning of a path
func removeLeadingSlash(p string) string {
	return strings.TrimLeft(p, `/\`)
}

// relativeURL returns a "./" or "../" prefixed URL from one directory to a file.
func relativeURL(fromDir, to string) string {
	rel, err := filepath.Rel(DenormalizePathForOS(fromDir), DenormalizePathForOS(to))
	if err != nil {
		rel = to
	}
	url := filepath.ToSlash(rel)
	if !strings.HasPrefix(url, "./") && !strings.HasPrefix(url, "../") {
		url = "./" + url
	}
	return url
}

// stripQueryAndHash drops ?query and #fragment parts that have no meaning on disk.
func stripQueryAndHash(specifier string) string {
	if idx := strings.IndexAny(specifier, "?#"); idx >= 0 {
		return specifier[:idx]
	}
	return specifier
}

func isRelativeSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") || specifier == "." || specifier == ".."
}

// ResolveSpecifier maps an import specifier to an absolute path. Root-relative
// specifiers resolve against rootDir, relative ones against the importer's
// directory. Anything else is classified and returned without a path.
func ResolveSpecifier(specifier string, importer string, rootDir string) (string, ResolvedImportType) {
	if isRemoteModule(specifier) {
		return "", RemoteModule
	}
	if strings.HasPrefix(specifier, "data:") {
		return "", DataURLModule
	}

	request := stripQueryAndHash(specifier)

	var modulePath string
	switch {
	case strings.HasPrefix(request, "/"):
		modulePath = filepath.Join(rootDir, removeLeadingSlash(request))
	case isRelativeSpecifier(request):
		modulePath = filepath.Join(filepath.Dir(importer), request)
	default:
		return "", PackageModule
	}

	return NormalizePathForInternal(filepath.Clean(modulePath)), UserModule
}
