package marketplace

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/superworldapp/nftsalon-engine/src/assets"
	"github.com/superworldapp/nftsalon-engine/src/auction"
	"github.com/superworldapp/nftsalon-engine/src/royalty"
	"github.com/superworldapp/nftsalon-engine/src/settle"
	"github.com/superworldapp/nftsalon-engine/src/utils/eth"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

// status maps domain errors onto HTTP codes. Unrecognized errors stay 500,
// their text is not leaked to the client.
func status(err error) int {
	switch {
	case errors.Is(err, ErrNotAuthorized),
		errors.Is(err, ErrSignerNotConfigured),
		errors.Is(err, eth.ErrSignatureMismatch),
		errors.Is(err, eth.ErrInvalidSignatureLength):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrWrongCloser),
		errors.Is(err, ErrRoyaltyCallerForbidden),
		errors.Is(err, assets.ErrNotAssetOwner):
		return http.StatusForbidden
	case errors.Is(err, assets.ErrAssetNotFound),
		errors.Is(err, assets.ErrUnknownCollection),
		errors.Is(err, auction.ErrNotBidding):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrAuctionStillActive),
		errors.Is(err, auction.ErrAuctionLapsed),
		errors.Is(err, ErrAuctionInProgress),
		errors.Is(err, ErrSellerChanged),
		errors.Is(err, assets.ErrDuplicateAsset),
		errors.Is(err, settle.ErrAccountBlocked):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientAttachment),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrEndTimeNotFuture),
		errors.Is(err, auction.ErrDeadlineTooFar),
		errors.Is(err, auction.ErrCountdownTooLong),
		errors.Is(err, royalty.ErrLengthMismatch),
		errors.Is(err, royalty.ErrPercentageCapExceeded),
		errors.Is(err, settle.ErrInsufficientFunds),
		errors.Is(err, settle.ErrNothingToWithdraw),
		errors.Is(err, settle.ErrInsufficientFeeBalance):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (self *Server) fail(c *gin.Context, err error) {
	code := status(err)
	if code == http.StatusInternalServerError {
		self.Log.WithError(err).Error("Request failed")
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func assetKey(c *gin.Context) (collection common.Address, assetId uint64, ok bool) {
	if !common.IsHexAddress(c.Param("collection")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid collection address"})
		return
	}
	collection = common.HexToAddress(c.Param("collection"))

	assetId, err := strconv.ParseUint(c.Param("assetId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}
	ok = true
	return
}

type placeBidRequest struct {
	Terms     BidTerms      `json:"terms"`
	Signature hexutil.Bytes `json:"signature"`
	Attached  uint64        `json:"attached"`
	Location  string        `json:"location"`
}

func (self *Server) onPlaceBid(c *gin.Context) {
	var in placeBidRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	result, err := self.facade.PlaceBid(c.Request.Context(), &in.Terms, in.Signature, in.Attached, in.Location)
	if err != nil {
		self.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type closeAuctionRequest struct {
	Collection common.Address `json:"collection"`
	AssetId    uint64         `json:"assetId"`
	Initiator  common.Address `json:"initiator"`
}

func (self *Server) onCloseAuction(c *gin.Context) {
	var in closeAuctionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	disposition, err := self.facade.CloseAuction(c.Request.Context(), in.Collection, in.AssetId, in.Initiator)
	if err != nil {
		self.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, disposition)
}

func (self *Server) onGetAuction(c *gin.Context) {
	collection, assetId, ok := assetKey(c)
	if !ok {
		return
	}

	live, err := self.facade.GetAuction(c.Request.Context(), collection, assetId)
	if err != nil {
		self.fail(c, err)
		return
	}
	if live == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no live auction"})
		return
	}

	c.JSON(http.StatusOK, live)
}

type buyRequest struct {
	Terms     MintTerms     `json:"terms"`
	Signature hexutil.Bytes `json:"signature"`
	Attached  uint64        `json:"attached"`
}

func (self *Server) onBuy(c *gin.Context) {
	var in buyRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	disposition, err := self.facade.Buy(c.Request.Context(), &in.Terms, in.Signature, in.Attached)
	if err != nil {
		self.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, disposition)
}

type giftRequest struct {
	Collection common.Address `json:"collection"`
	AssetId    uint64         `json:"assetId"`
	From       common.Address `json:"from"`
	To         common.Address `json:"to"`
}

func (self *Server) onGift(c *gin.Context) {
	var in giftRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	err := self.facade.Gift(c.Request.Context(), in.Collection, in.AssetId, in.From, in.To)
	if err != nil {
		self.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type depositRequest struct {
	Account common.Address `json:"account"`
	Amount  uint64         `json:"amount"`
}

func (self *Server) onDeposit(c *gin.Context) {
	var in depositRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	err := self.facade.Deposit(c.Request.Context(), in.Account, in.Amount)
	if err != nil {
		self.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type withdrawPendingRequest struct {
	Account common.Address `json:"account"`
}

func (self *Server) onWithdrawPending(c *gin.Context) {
	var in withdrawPendingRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	amount, deferred, err := self.facade.WithdrawPending(c.Request.Context(), in.Account)
	if err != nil {
		self.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"amount": amount, "deferred": deferred})
}

type withdrawFeesRequest struct {
	Initiator common.Address `json:"initiator"`

	// 0 withdraws the whole accrued balance
	Amount uint64 `json:"amount"`
}

func (self *Server) onWithdrawFees(c *gin.Context) {
	var in withdrawFeesRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	amount, deferred, err := self.facade.WithdrawFees(c.Request.Context(), in.Initiator, in.Amount)
	if err != nil {
		self.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"amount": amount, "deferred": deferred})
}

func (self *Server) onGetBalances(c *gin.Context) {
	if !common.IsHexAddress(c.Param("address")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	balances, err := self.facade.GetBalances(c.Request.Context(), common.HexToAddress(c.Param("address")))
	if err != nil {
		self.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, balances)
}

type setRoyaltiesRequest struct {
	Caller      common.Address   `json:"caller"`
	Collection  common.Address   `json:"collection"`
	AssetId     uint64           `json:"assetId"`
	Recipients  []common.Address `json:"recipients"`
	Percentages []uint           `json:"percentages"`
}

func (self *Server) onSetRoyalties(c *gin.Context) {
	var in setRoyaltiesRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	err := self.facade.SetRoyalties(c.Request.Context(), in.Caller, in.Collection, in.AssetId, in.Recipients, in.Percentages)
	if err != nil {
		self.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (self *Server) onGetRoyalties(c *gin.Context) {
	collection, assetId, ok := assetKey(c)
	if !ok {
		return
	}

	rows, err := self.facade.GetRoyalties(c.Request.Context(), collection, assetId)
	if err != nil {
		self.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (self *Server) onGetState(c *gin.Context) {
	state, err := self.facade.GetState(c.Request.Context())
	if err != nil {
		self.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

type updateSettingsRequest struct {
	Initiator common.Address `json:"initiator"`

	FeeRatePercent    *uint   `json:"feeRatePercent"`
	RoyaltyCapPercent *uint   `json:"royaltyCapPercent"`
	SignerAddress     *string `json:"signerAddress"`
	AuthorizedCaller  *string `json:"authorizedCaller"`
}

func (self *Server) onUpdateSettings(c *gin.Context) {
	var in updateSettingsRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	err := self.facade.UpdateSettings(c.Request.Context(), in.Initiator, &SettingsUpdate{
		FeeRatePercent:    in.FeeRatePercent,
		RoyaltyCapPercent: in.RoyaltyCapPercent,
		SignerAddress:     in.SignerAddress,
		AuthorizedCaller:  in.AuthorizedCaller,
	})
	if err != nil {
		self.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type registerCollectionRequest struct {
	Initiator common.Address `json:"initiator"`

	Address               string `json:"address"`
	Name                  string `json:"name"`
	SupportsNativeMinting bool   `json:"supportsNativeMinting"`
	SupportsMultiRoyalty  bool   `json:"supportsMultiRoyalty"`
	SupportsSingleRoyalty bool   `json:"supportsSingleRoyalty"`
}

func (self *Server) onRegisterCollection(c *gin.Context) {
	var in registerCollectionRequest
	if err := c.ShouldBindJSON(&in); err != nil || !common.IsHexAddress(in.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	err := self.facade.RegisterCollection(c.Request.Context(), in.Initiator, &model.Collection{
		Address:               in.Address,
		Name:                  in.Name,
		SupportsNativeMinting: in.SupportsNativeMinting,
		SupportsMultiRoyalty:  in.SupportsMultiRoyalty,
		SupportsSingleRoyalty: in.SupportsSingleRoyalty,
	})
	if err != nil {
		self.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
