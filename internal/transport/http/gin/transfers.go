package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/service"
	"github.com/kirinyoku/tix-engine/internal/service/transfer"
)

// @Summary  Offer a ticket or collectible
// @Param    X-User-ID  header  string  true  "Sender"
// @Param    req body  CreateTransferRequest true "payload"
// @Success  201 {object} CreateTransferResponse
// @Failure  400 {object} ErrorResponse
// @Failure  403 {object} ErrorResponse "not the owner"
// @Failure  422 {object} ErrorResponse "not transferable"
// @Failure  423 {object} ErrorResponse "already offered"
// @Router   /transfers [post]
func handleCreateTransfer(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		assetID, err := uuid.Parse(req.AssetID)
		if err != nil {
			badRequest(c, "invalid asset_id")
			return
		}

		t, err := svcs.Transfer.Create(c.Request.Context(), transfer.CreateInput{
			AssetType:  domain.AssetType(req.AssetType),
			AssetID:    assetID,
			FromUserID: userID(c),
			Kind:       domain.TransferKind(req.Kind),
			Price:      req.Price,
			Message:    req.Message,
			TTLHours:   req.TTLHours,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, CreateTransferResponse{
			Transfer: *t,
			Link:     svcs.Transfer.Link(t.Code),
		})
	}
}

// @Summary  Look up a transfer by code
// @Param    X-User-ID  header  string  true  "Viewer"
// @Param    code  path  string  true  "Transfer code"
// @Success  200 {object} domain.TransferView
// @Failure  404 {object} ErrorResponse
// @Router   /transfers/{code} [get]
func handleLookupTransfer(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svcs.Transfer.Lookup(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, v)
	}
}

// @Summary  QR code of a transfer link
// @Param    X-User-ID  header  string  true  "Viewer"
// @Param    code  path  string  true  "Transfer code"
// @Produce  png
// @Success  200 {file} binary
// @Failure  404 {object} ErrorResponse
// @Router   /transfers/{code}/qr [get]
func handleTransferQR(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		png, err := svcs.Transfer.QRCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	}
}

// @Summary  Accept or reject a transfer
// @Param    X-User-ID  header  string  true  "Receiver"
// @Param    code  path  string  true  "Transfer code"
// @Success  200 {object} domain.Transfer
// @Failure  403 {object} ErrorResponse "sender cannot resolve"
// @Failure  409 {object} ErrorResponse "already processed"
// @Failure  410 {object} ErrorResponse "expired"
// @Router   /transfers/{code}/accept [post]
// @Router   /transfers/{code}/reject [post]
func handleResolveTransfer(svcs *service.Services, accept bool) gin.HandlerFunc {
	action := transfer.Reject
	if accept {
		action = transfer.Accept
	}

	return func(c *gin.Context) {
		t, err := svcs.Transfer.Resolve(c.Request.Context(), c.Param("code"), action, userID(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Withdraw a transfer
// @Param    X-User-ID  header  string  true  "Sender"
// @Param    code  path  string  true  "Transfer code"
// @Success  200 {object} domain.Transfer
// @Failure  403 {object} ErrorResponse "not the sender"
// @Failure  409 {object} ErrorResponse "already processed"
// @Failure  410 {object} ErrorResponse "expired"
// @Router   /transfers/{code}/cancel [post]
func handleCancelTransfer(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svcs.Transfer.Cancel(c.Request.Context(), c.Param("code"), userID(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  List transfers I sent or received
// @Param    X-User-ID  header  string  true  "User"
// @Success  200 {array} domain.Transfer
// @Router   /users/me/transfers [get]
func handleListTransfers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ts, err := svcs.Query.ListTransfers(c.Request.Context(), userID(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(ts))
	}
}
