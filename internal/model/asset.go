package model

type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindOther AssetKind = "other"
)

// StoredAsset is an uploaded file after it has been placed on the store.
type StoredAsset struct {
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Kind      AssetKind `json:"kind"`
	ThumbPath string    `json:"thumb_path,omitempty"`
}

// BrowseFile is one row of the browse listing.
type BrowseFile struct {
	Thumb   string `json:"thumb"`
	Src     string `json:"src"`
	IsImage bool   `json:"is_image"`
}
