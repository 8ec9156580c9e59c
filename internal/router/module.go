package router

import "github.com/gin-gonic/gin"

// Module describes a feature module that can register its routes on a RouterGroup
type Module interface {
	Register(rg *gin.RouterGroup)
}

// PageModule is a Module that also serves HTML pages outside /api.
type PageModule interface {
	Module
	RegisterPages(rg *gin.RouterGroup)
}
