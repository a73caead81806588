package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/store"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// usersAPI exposes a UserStore as the JSON users resource.  It contains no
// storage logic of its own.
type usersAPI struct {
	store  store.UserStore
	logger *zap.Logger
}

func (a *usersAPI) register(r gin.IRoutes) {
	r.GET("/users", a.listUsers)
	r.GET("/users/:id", a.getUser)
	r.POST("/users", a.createUser)
	r.PUT("/users/:id", a.updateUser)
	r.DELETE("/users/:id", a.deleteUser)
}

// listUsers answers with every user in creation order.  An empty store is
// an empty array, never null.
func (a *usersAPI) listUsers(c *gin.Context) {
	users, err := a.store.ListUsers(c.Request.Context())
	if err != nil {
		a.fail(c, "list users failed", err)
		return
	}
	if users == nil {
		users = []user.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (a *usersAPI) getUser(c *gin.Context) {
	u, err := a.store.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, "get user failed", err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": store.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, u)
}

// createUser stores the posted draft.  The id is always assigned here; a
// missing registration date is stamped by the store.
func (a *usersAPI) createUser(c *gin.Context) {
	var draft user.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := a.store.CreateUser(c.Request.Context(), draft)
	if err != nil {
		a.fail(c, "create user failed", err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// updateUser replaces the whole record.  The path id wins over any id in
// the body.
func (a *usersAPI) updateUser(c *gin.Context) {
	var u user.User
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u.ID = c.Param("id")

	updated, err := a.store.UpdateUser(c.Request.Context(), u)
	if err != nil {
		a.fail(c, "update user failed", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (a *usersAPI) deleteUser(c *gin.Context) {
	removed, err := a.store.DeleteUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, "delete user failed", err)
		return
	}
	c.JSON(http.StatusOK, removed)
}

// fail maps a store error onto a response.  ErrNotFound is a 404;
// anything else is logged and reported as a 500.
func (a *usersAPI) fail(c *gin.Context, msg string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	a.logger.Error(msg, zap.String("id", c.Param("id")), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
