package rest

import (
	"net/http"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/gin-gonic/gin"
)

type groupMembershipResponse struct {
	Username string `json:"username"`
	Group    string `json:"group"`
	IsMember bool   `json:"is_member"`
}

type whoAmIResponse struct {
	Authenticated bool   `json:"authenticated"`
	Method        string `json:"method"`
	Subject       string `json:"sub"`
}

func (h *handler) requireDirectory(c *gin.Context) {
	if h.directory == nil || !h.directory.Configured() {
		h.fail(c, common.NewError(common.ErrConfiguration, "Cognito is not configured"))
		return
	}
	c.Next()
}

// adminGetUser looks a pool user up by the "sub" claim.
func (h *handler) adminGetUser(c *gin.Context) {
	u, err := h.directory.GetUserBySub(c.Request.Context(), c.Param("user"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if u == nil {
		h.fail(c, common.NewError(common.ErrorNotFound, "User not found"))
		return
	}

	if u.Attributes == nil {
		u.Attributes = map[string]string{}
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) adminUserInGroup(c *gin.Context) {
	username, group := c.Param("user"), c.Param("group")
	ok, err := h.directory.IsUserInGroup(c.Request.Context(), username, group)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, groupMembershipResponse{Username: username, Group: group, IsMember: ok})
}

func (h *handler) serviceWhoAmI(c *gin.Context) {
	id := currentIdentity(c)
	c.JSON(http.StatusOK, whoAmIResponse{Authenticated: true, Method: id.Method, Subject: id.Subject})
}
