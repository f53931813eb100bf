package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Shared shapes of the admin CRUD endpoints.

func respondList[T any](c *gin.Context, key string, list func(context.Context) ([]T, error)) {
	items, err := list(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: nonNil(items)})
}

func respondGet[T any](c *gin.Context, get func(context.Context, uint) (*T, error)) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	item, err := get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func respondCreate[Req, T any](c *gin.Context, create func(context.Context, *Req) (*T, error)) {
	var req Req
	if !bindJSON(c, &req) {
		return
	}
	item, err := create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func respondUpdate[Req, T any](c *gin.Context, update func(context.Context, uint, *Req) (*T, error)) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req Req
	if !bindJSON(c, &req) {
		return
	}
	item, err := update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func respondDelete(c *gin.Context, del func(context.Context, uint) error) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := del(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
