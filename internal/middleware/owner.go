package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

// Owner identifies the operator's own API key, which bypasses rate limits.
// Either field may be empty; an Owner with both empty matches nothing.
type Owner struct {
	KeyID     string
	KeyPrefix string
}

// IsOwnerAPIKey checks if the given API key should bypass limits.
// It matches either the key ID or the key prefix if configured.
func IsOwnerAPIKey(apiKey *models.APIKey, owner Owner) bool {
	if apiKey == nil {
		return false
	}
	if owner.KeyID != "" && apiKey.ID == owner.KeyID {
		return true
	}
	if owner.KeyPrefix != "" && apiKey.KeyPrefix == owner.KeyPrefix {
		return true
	}
	return false
}

// IsOwnerRequest reports whether the request was authenticated with the
// owner key.
func IsOwnerRequest(c *gin.Context, owner Owner) bool {
	return IsOwnerAPIKey(GetAPIKey(c), owner)
}
