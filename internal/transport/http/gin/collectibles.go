package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/service"
	"github.com/kirinyoku/tix-engine/internal/service/minting"
)

// @Summary  Paid orders without a collectible
// @Param    X-User-ID  header  string  true  "Buyer"
// @Success  200 {array} domain.Order
// @Router   /users/me/mintable-orders [get]
func handleListMintable(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svcs.Minting.ListMintableOrders(c.Request.Context(), userID(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(orders))
	}
}

// @Summary  List my collectibles
// @Param    X-User-ID  header  string  true  "Owner"
// @Success  200 {array} domain.Collectible
// @Router   /users/me/collectibles [get]
func handleListCollectibles(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		cs, err := svcs.Query.ListCollectibles(c.Request.Context(), userID(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(cs))
	}
}

// @Summary  Create a collectible for a paid order
// @Param    X-User-ID  header  string  true  "Buyer"
// @Param    req body  CreateCollectibleRequest true "payload"
// @Success  201 {object} domain.Collectible
// @Failure  403 {object} ErrorResponse "not the buyer"
// @Failure  409 {object} ErrorResponse "already created"
// @Router   /collectibles [post]
func handleCreateCollectible(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCollectibleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			badRequest(c, "invalid order_id")
			return
		}

		col, err := svcs.Minting.CreateCollectible(c.Request.Context(), minting.CreateInput{
			OrderID:      orderID,
			DefinitionID: req.DefinitionID,
			BuyerID:      userID(c),
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, col)
	}
}

// @Summary  Report mint progress
// @Param    id  path  string  true  "Collectible ID (uuid)"
// @Param    req body  UpdateMintStatusRequest true "payload"
// @Success  200 {object} domain.Collectible
// @Failure  409 {object} ErrorResponse "invalid transition"
// @Router   /collectibles/{id}/mint-status [post]
func handleUpdateMintStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req UpdateMintStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		col, err := svcs.Minting.UpdateMintStatus(c.Request.Context(), id, domain.MintStatus(req.Status), req.OnChain)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, col)
	}
}
