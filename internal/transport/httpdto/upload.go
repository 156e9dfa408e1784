package httpdto

// PresignUploadRequest is used for POST /uploads/presign
type PresignUploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type" binding:"required"`
	SizeBytes   int64  `json:"size_bytes" binding:"required"`
}

// PresignUploadResponse carries the presigned PUT for a message attachment
type PresignUploadResponse struct {
	UploadURL string            `json:"upload_url"`
	Key       string            `json:"key"`
	Headers   map[string]string `json:"headers,omitempty"`
	PublicURL string            `json:"public_url,omitempty"`
	ExpiresIn int64             `json:"expires_in"`
}
