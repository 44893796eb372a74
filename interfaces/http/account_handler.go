package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storycast/domain/repository"
	"storycast/usecase"
)

type IAccountHandler interface {
	ListAccounts(c *gin.Context)
	RefreshAccount(c *gin.Context)
}

type AccountHandler struct {
	Accounts repository.IAccountStore
	Tokens   usecase.ITokenLifecycle
}

func NewAccountHandler(accounts repository.IAccountStore, tokens usecase.ITokenLifecycle) IAccountHandler {
	return &AccountHandler{Accounts: accounts, Tokens: tokens}
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.Accounts.ListAccounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": accounts})
}

// RefreshAccount forces a credential refresh for one account, used when an
// operator re-links a platform identity and wants it usable immediately.
func (h *AccountHandler) RefreshAccount(c *gin.Context) {
	id := c.Param("accountId")
	account, err := h.Accounts.GetAccount(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	refreshed, err := h.Tokens.RefreshAccount(c.Request.Context(), account, usecase.TriggerRecovery)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": refreshed})
}
