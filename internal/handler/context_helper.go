package handler

import "github.com/gin-gonic/gin"

const (
	userIDHeader   = "X-User-ID"
	userNameHeader = "X-User-Name"
)

// ownerFromContext extracts the caller identity injected by the upstream
// auth layer. Authentication itself happens before requests reach this
// service.
func ownerFromContext(c *gin.Context) (ownerID, ownerName string) {
	return c.GetHeader(userIDHeader), c.GetHeader(userNameHeader)
}
