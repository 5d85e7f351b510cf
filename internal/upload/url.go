package upload

import (
	"regexp"
	"strings"

	"github.com/xxxsen/ckupload/internal/config"
	"github.com/xxxsen/ckupload/internal/filestore"
)

var slashRun = regexp.MustCompile(`/{2,}`)

// URLResolver maps storage keys to public URLs. It never touches the store
// other than asking it for its own public URL as a last resort.
type URLResolver struct {
	cfg   config.CKEditorConfig
	store filestore.Store
}

func NewURLResolver(cfg config.CKEditorConfig, store filestore.Store) *URLResolver {
	return &URLResolver{cfg: cfg, store: store}
}

func (u *URLResolver) ToURL(storagePath string) string {
	if u.cfg.UploadURL != "" {
		if rel, ok := stripRoot(storagePath, u.cfg.UploadPath); ok {
			return collapseSlashes(u.cfg.UploadURL + "/" + rel)
		}
	}
	if u.cfg.MediaURL != "" {
		rel, ok := stripRoot(storagePath, u.cfg.MediaRoot)
		if !ok {
			rel = strings.TrimPrefix(storagePath, "/")
		}
		return collapseSlashes(u.cfg.MediaURL + "/" + rel)
	}
	if u.store == nil {
		return collapseSlashes("/" + storagePath)
	}
	return collapseSlashes(u.store.URL(storagePath))
}

// stripRoot removes root from p on a path segment boundary.
func stripRoot(p, root string) (string, bool) {
	p = strings.Trim(p, "/")
	root = strings.Trim(root, "/")
	if root == "" {
		return p, true
	}
	if p == root {
		return "", true
	}
	if strings.HasPrefix(p, root+"/") {
		return strings.TrimPrefix(p, root+"/"), true
	}
	return "", false
}

// collapseSlashes squeezes repeated separators, leaving a scheme's "//" intact.
func collapseSlashes(u string) string {
	prefix := ""
	if idx := strings.Index(u, "://"); idx >= 0 {
		prefix, u = u[:idx+3], u[idx+3:]
	}
	return prefix + slashRun.ReplaceAllString(u, "/")
}
