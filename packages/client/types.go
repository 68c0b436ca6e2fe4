package client

import "strings"

// typeAliases maps content-type shorthands to literal MIME strings.
var typeAliases = map[string]string{
	"json":      "application/json",
	"form":      "application/x-www-form-urlencoded",
	"multipart": "multipart/form-data",
	"text":      "text/plain",
	"html":      "text/html",
	"xml":       "application/xml",
}

// RegisterTypeAlias adds or replaces a content-type alias usable with Type
// and Accept. Register during setup; the alias table is not synchronized.
func RegisterTypeAlias(alias, mime string) {
	typeAliases[alias] = mime
}

// resolveType maps an alias to its MIME string. Values that already look
// like a MIME type pass through unchanged, as do unknown aliases.
func resolveType(v string) string {
	if strings.Contains(v, "/") {
		return v
	}
	if mime, ok := typeAliases[v]; ok {
		return mime
	}
	return v
}
