package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SplitFi/go-drops/middleware"
	"github.com/SplitFi/go-drops/publicapi"
	"github.com/SplitFi/go-drops/service/eligibility"
	"github.com/SplitFi/go-drops/service/ledger"
	"github.com/SplitFi/go-drops/service/mint"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/util"
	"github.com/SplitFi/go-drops/validate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

func handlersInit(router *gin.Engine, api *publicapi.PublicAPI) *gin.Engine {
	router.Use(func(c *gin.Context) {
		publicapi.AddTo(c, api)
		c.Next()
	})

	router.GET("/alive", util.HealthCheckHandler())

	dropsGroup := router.Group("/drops")
	dropsGroup.GET("/count", getDropCount)
	dropsGroup.GET("/external/:externalID", getDropByExternalID)
	dropsGroup.GET("/:id", getDropByID)
	dropsGroup.GET("/:id/eligibility", getIneligibilityReason)

	authed := middleware.CallerRequired()
	dropsGroup.POST("", authed, createDrop)
	dropsGroup.POST("/:id/supply", authed, setSupply)
	dropsGroup.POST("/:id/sale-window", authed, setSaleWindow)
	dropsGroup.POST("/:id/allowlist-root", authed, setAllowListRoot)
	dropsGroup.POST("/:id/right-holder", authed, setRightHolder)

	router.POST("/mint", authed, mintTokens)

	rolesGroup := router.Group("/roles", authed)
	rolesGroup.POST("/grant", grantRole)
	rolesGroup.POST("/revoke", revokeRole)
	rolesGroup.GET("/:address", getRoles)

	adminGroup := router.Group("/admin", authed)
	adminGroup.POST("/pause", pauseCollection)
	adminGroup.POST("/unpause", unpauseCollection)
	adminGroup.POST("/base-uri", setBaseURI)
	adminGroup.POST("/treasury", setTreasury)

	return router
}

func getDropByID(c *gin.Context) {
	id, err := dropIDParam(c)
	if err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	d, err := publicapi.For(c).Drop.GetDropByID(c, id)
	if err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func getDropByExternalID(c *gin.Context) {
	d, err := publicapi.For(c).Drop.GetDropByExternalID(c, c.Param("externalID"))
	if err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func getDropCount(c *gin.Context) {
	count, err := publicapi.For(c).Drop.CountDrops(c)
	if err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func createDrop(c *gin.Context) {
	var input publicapi.CreateDropInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	d, err := publicapi.For(c).Drop.CreateDrop(c, input)
	if err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func setSupply(c *gin.Context) {
	id, err := dropIDParam(c)
	if err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	var input struct {
		Supply uint64 `json:"supply" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Drop.SetSupply(c, id, input.Supply); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func setSaleWindow(c *gin.Context) {
	id, err := dropIDParam(c)
	if err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	var input persist.DropSaleWindowUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Drop.SetSaleWindow(c, id, input); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func setAllowListRoot(c *gin.Context) {
	id, err := dropIDParam(c)
	if err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	var input struct {
		Root common.Hash `json:"root"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Drop.SetAllowListRoot(c, id, input.Root); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func setRightHolder(c *gin.Context) {
	id, err := dropIDParam(c)
	if err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	var input struct {
		NewOwner persist.EthereumAddress `json:"new_owner" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Drop.SetRightHolder(c, id, input.NewOwner); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func mintTokens(c *gin.Context) {
	var input publicapi.MintInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	units, err := publicapi.For(c).Mint.MintTokens(c, input)
	if err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unit_ids": units})
}

func getIneligibilityReason(c *gin.Context) {
	id, err := dropIDParam(c)
	if err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	quantity, err := strconv.ParseUint(c.DefaultQuery("quantity", "1"), 10, 64)
	if err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	input := publicapi.MintInput{
		To:       persist.EthereumAddress(c.Query("to")),
		DropID:   id,
		Quantity: quantity,
	}
	for _, p := range c.QueryArray("proof") {
		input.Proof = append(input.Proof, common.HexToHash(p))
	}
	verdict, err := publicapi.For(c).Mint.GetIneligibilityReason(c, input)
	if err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verdict": verdict, "eligible": verdict == eligibility.Eligible})
}

type roleChangeInput struct {
	Role    persist.Role            `json:"role" binding:"required"`
	Subject persist.EthereumAddress `json:"subject" binding:"required"`
}

func grantRole(c *gin.Context) {
	var input roleChangeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Role.GrantRole(c, input.Role, input.Subject); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func revokeRole(c *gin.Context) {
	var input roleChangeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Role.RevokeRole(c, input.Role, input.Subject); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func getRoles(c *gin.Context) {
	roles, err := publicapi.For(c).Role.GetRolesByAddress(c, persist.EthereumAddress(c.Param("address")))
	if err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

type collectionInput struct {
	Collection persist.EthereumAddress `json:"collection" binding:"required"`
}

func pauseCollection(c *gin.Context) {
	var input collectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Mint.PauseCollection(c, input.Collection); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func unpauseCollection(c *gin.Context) {
	var input collectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Mint.UnpauseCollection(c, input.Collection); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func setBaseURI(c *gin.Context) {
	var input struct {
		Collection persist.EthereumAddress `json:"collection" binding:"required"`
		BaseURI    string                  `json:"base_uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Mint.SetBaseURI(c, input.Collection, input.BaseURI); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func setTreasury(c *gin.Context) {
	var input struct {
		Treasury persist.EthereumAddress `json:"treasury" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(c, http.StatusBadRequest, err)
		return
	}
	if err := publicapi.For(c).Mint.SetTreasury(c, input.Treasury); err != nil {
		util.ErrResponse(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusOK)
}

func dropIDParam(c *gin.Context) (persist.DropID, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return persist.DropID(id), nil
}

// statusFor maps domain errors to HTTP status codes. Unknown errors are
// internal server errors so they reach sentry.
func statusFor(err error) int {
	var (
		invalidInput         validate.ErrInvalidInput
		notFoundByID         persist.ErrDropNotFoundByID
		notFoundByExternalID persist.ErrDropNotFoundByExternalID
		recordNotFound       persist.ErrMintRecordNotFound
		collectionNotFound   ledger.ErrCollectionNotFound
		unknownAsset         mint.ErrUnknownPaymentAsset
		unauthorized         persist.ErrUnauthorized
		conflict             persist.ErrDropConflict
		printConflict        persist.ErrPrintConflict
	)
	switch {
	case errors.As(err, &invalidInput):
		return http.StatusBadRequest
	case errors.As(err, &notFoundByID),
		errors.As(err, &notFoundByExternalID),
		errors.As(err, &recordNotFound),
		errors.As(err, &collectionNotFound),
		errors.As(err, &unknownAsset):
		return http.StatusNotFound
	case errors.As(err, &unauthorized):
		return http.StatusForbidden
	case errors.As(err, &conflict), errors.As(err, &printConflict):
		return http.StatusConflict
	case isMintRejection(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isMintRejection(err error) bool {
	var (
		paused         persist.ErrMintingPaused
		soldOut        persist.ErrDropSoldOut
		notEnough      persist.ErrNotEnoughTokensAvailable
		badIDCount     persist.ErrIncorrectExternalIDs
		saleNotStarted persist.ErrSaleNotStarted
		privateNotOpen persist.ErrPrivateSaleNotStarted
		saleEnded      persist.ErrSaleEnded
		notWhiteListed persist.ErrNotWhiteListed
		maxMint        persist.ErrMaxMintPerAddress
		badSupply      persist.ErrInvalidSupply
		badCollection  persist.ErrInvalidCollection
		notACreator    persist.ErrNotACreator
		badUpdate      persist.ErrUnauthorizedUpdate
		badAddress     persist.ErrInvalidAddress
		lowBalance     persist.ErrInsufficientBalance
		lowAllowance   persist.ErrInsufficientAllowance
	)
	return errors.As(err, &paused) ||
		errors.As(err, &soldOut) ||
		errors.As(err, &notEnough) ||
		errors.As(err, &badIDCount) ||
		errors.As(err, &saleNotStarted) ||
		errors.As(err, &privateNotOpen) ||
		errors.As(err, &saleEnded) ||
		errors.As(err, &notWhiteListed) ||
		errors.As(err, &maxMint) ||
		errors.As(err, &badSupply) ||
		errors.As(err, &badCollection) ||
		errors.As(err, &notACreator) ||
		errors.As(err, &badUpdate) ||
		errors.As(err, &badAddress) ||
		errors.As(err, &lowBalance) ||
		errors.As(err, &lowAllowance)
}
