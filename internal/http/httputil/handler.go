package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler is a group of routes mounted under Root. Public routes take
// no wallet context, private routes act on behalf of a merchant or wallet,
// and admin routes are operator-only.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup)
}

// Mount registers every handler under api, with admin routes below
// api/admin behind adminGuard.
func Mount(api *gin.RouterGroup, adminGuard gin.HandlerFunc, handlers ...IHttpHandler) {
	admin := api.Group("admin")
	if adminGuard != nil {
		admin.Use(adminGuard)
	}
	for _, h := range handlers {
		h.SetRoutes(api.Group(h.Root()), api.Group(h.Root()), admin.Group(h.Root()))
	}
}
