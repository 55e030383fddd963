package dto

// RequestInfoRequest is the admin's question to the owner.
type RequestInfoRequest struct {
	Message       string `json:"message"`
	RequiresFile  bool   `json:"requiresFile"`
	RequiresYesNo bool   `json:"requiresYesNo"`
}

// InfoResponseRequest is the owner's answer. Multipart requests may add a "file" part.
type InfoResponseRequest struct {
	RequestID string `json:"requestId" form:"requestId"`
	Answer    string `json:"answer" form:"answer"`
}
