package models

// Blob is one stored value. Value holds the uncompressed JSON document.
type Blob struct {
	Database  string `json:"db"`
	Key       string `json:"key"`
	Value     []byte `json:"value"`
	UpdatedAt int64  `json:"updated_at"`
}
