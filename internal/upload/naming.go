package upload

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ThumbSuffix is inserted before the extension of an asset to name its thumbnail.
const ThumbSuffix = "_thumb"

var imageExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
}

var (
	slugStrip = regexp.MustCompile(`[^\w\s-]`)
	slugDash  = regexp.MustCompile(`[-\s]+`)
)

// ThumbName returns the thumbnail path of p: "a/b/photo.png" -> "a/b/photo_thumb.png".
func ThumbName(p string) string {
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + ThumbSuffix + ext
}

// IsThumbName reports whether the base name of p, without extension, carries the thumbnail suffix.
func IsThumbName(p string) bool {
	base := path.Base(p)
	return strings.HasSuffix(strings.TrimSuffix(base, path.Ext(base)), ThumbSuffix)
}

// IsImage classifies by extension only.
func IsImage(p string) bool {
	idx := strings.LastIndex(p, ".")
	if idx < 0 {
		return false
	}
	_, ok := imageExts[strings.ToLower(p[idx+1:])]
	return ok
}

// Slugify folds value to lowercase ASCII words joined by hyphens.
func Slugify(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		folded = value
	}
	folded = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
	folded = strings.ToLower(strings.TrimSpace(slugStrip.ReplaceAllString(folded, "")))
	return slugDash.ReplaceAllString(folded, "-")
}

// SlugifyFilename slugifies the stem and the extension separately.
func SlugifyFilename(name string) string {
	stem, ext := splitExt(name)
	slug := Slugify(stem)
	if slug == "" && strings.TrimSpace(stem) != "" {
		slug = "file"
	}
	if ext == "" {
		return slug
	}
	extSlug := Slugify(strings.TrimPrefix(ext, "."))
	if extSlug == "" {
		return slug
	}
	return slug + "." + extSlug
}

// baseName strips any client supplied directory, including windows style paths.
func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// splitExt treats a leading dot as part of the stem, so ".env" has no extension.
func splitExt(name string) (string, string) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if strings.Trim(stem, ".") == "" {
		return name, ""
	}
	return stem, ext
}

func insertBeforeExt(p, filler string) string {
	dir, file := path.Split(p)
	stem, ext := splitExt(file)
	return dir + stem + filler + ext
}
