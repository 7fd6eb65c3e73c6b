package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/Mohsinsiddi/w3sale/internal/journal"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/store"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type buyRequest struct {
	Signed
	AmountIn    string   `json:"amount_in" binding:"required"`
	Beneficiary uint8    `json:"beneficiary"`
	Proof       []string `json:"proof"`
}

type sweepRequest struct {
	Signed
	Token string `json:"token" binding:"required"`
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (s *Server) handleStatus(c *gin.Context) {
	sl, err := s.world.Sale()
	if err != nil {
		s.fail(c, "status", err)
		return
	}
	c.JSON(http.StatusOK, sl.Status())
}

func (s *Server) handleAmountOut(c *gin.Context) {
	sl, err := s.world.Sale()
	if err != nil {
		s.fail(c, "amount-out", err)
		return
	}
	amountIn, ok := new(big.Int).SetString(c.Query("amount_in"), 10)
	if !ok || amountIn.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_in must be a non-negative integer", "kind": sale.KindInvalidArgument})
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount_in": amountIn, "amount_out": sl.AmountOut(amountIn)})
}

func (s *Server) handleDepositor(c *gin.Context) {
	sl, err := s.world.Sale()
	if err != nil {
		s.fail(c, "depositor", err)
		return
	}
	addr, err := parseAddress("address", c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": sale.KindInvalidArgument})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "depositor": sl.Depositor(addr)})
}

func (s *Server) handleCommitment(c *gin.Context) {
	sl, err := s.world.Sale()
	if err != nil {
		s.fail(c, "commitment", err)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 8)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "beneficiary id must be 0-255", "kind": sale.KindInvalidArgument})
		return
	}
	c.JSON(http.StatusOK, gin.H{"beneficiary": id, "committed": sl.Commitment(sale.BeneficiaryID(id))})
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no event journal configured"})
		return
	}
	f := journal.Filter{Name: c.Query("name")}
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after must be an integer"})
			return
		}
		f.AfterSeq = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		f.Limit = n
	}
	if sl, err := s.world.Sale(); err == nil {
		f.Sale = sl.Address()
	}
	entries, err := s.journal.List(c.Request.Context(), f)
	if err != nil {
		s.logger.Error("listing events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": entries})
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

func (s *Server) handleBuy(c *gin.Context) {
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("failed to bind buy request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	amountIn, ok := new(big.Int).SetString(req.AmountIn, 10)
	if !ok || amountIn.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_in must be a non-negative integer", "kind": sale.KindInvalidArgument})
		return
	}
	proof := make([]common.Hash, 0, len(req.Proof))
	for _, p := range req.Proof {
		b, err := hexHash(p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": sale.KindInvalidArgument})
			return
		}
		proof = append(proof, b)
	}

	var amountOut *big.Int
	s.signedOp(c, "buy", req.Signed, []string{req.AmountIn, strconv.Itoa(int(req.Beneficiary)), strings.Join(req.Proof, ",")},
		func(ctx context.Context, sl *sale.Sale, from common.Address) error {
			out, err := sl.Buy(ctx, from, amountIn, sale.BeneficiaryID(req.Beneficiary), proof)
			amountOut = out
			return err
		},
		func() gin.H { return gin.H{"amount_in": amountIn, "amount_out": amountOut} },
	)
}

func (s *Server) handleClaim(c *gin.Context) {
	var req Signed
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	var amount *big.Int
	s.signedOp(c, "claim", req, nil,
		func(ctx context.Context, sl *sale.Sale, from common.Address) error {
			out, err := sl.Claim(ctx, from)
			amount = out
			return err
		},
		func() gin.H { return gin.H{"amount": amount} },
	)
}

func (s *Server) handleFinalize(c *gin.Context) {
	var req Signed
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	s.signedOp(c, "finalize", req, nil,
		func(ctx context.Context, sl *sale.Sale, from common.Address) error {
			return sl.Finalize(ctx, from)
		},
		func() gin.H { return gin.H{"finalized": true} },
	)
}

func (s *Server) handleSweep(c *gin.Context) {
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	tokenAddr, err := parseAddress("token", req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": sale.KindInvalidArgument})
		return
	}
	var amount *big.Int
	s.signedOp(c, "sweep", req.Signed, []string{tokenAddr.Hex()},
		func(ctx context.Context, sl *sale.Sale, from common.Address) error {
			asset, err := s.world.SaleAsset(tokenAddr)
			if err != nil {
				return err
			}
			out, err := sl.Sweep(ctx, from, asset)
			amount = out
			return err
		},
		func() gin.H { return gin.H{"token": tokenAddr, "amount": amount} },
	)
}

// signedOp authenticates req for op, runs fn as the signer and commits.
func (s *Server) signedOp(
	c *gin.Context,
	op string,
	req Signed,
	fields []string,
	fn func(ctx context.Context, sl *sale.Sale, from common.Address) error,
	result func() gin.H,
) {
	sl, err := s.world.Sale()
	if err != nil {
		s.fail(c, op, err)
		return
	}
	g, err := s.authenticate(req, Message(op, sl.Address(), req.Deadline, fields...))
	if err != nil {
		s.fail(c, op, err)
		return
	}
	ctx := c.Request.Context()
	err = s.transact(ctx, &g, func(sl *sale.Sale) error { return fn(ctx, sl, g.from) })
	if err != nil {
		s.fail(c, op, err)
		return
	}
	s.logger.Info("sale operation committed", zap.String("op", op), zap.Stringer("from", g.from))
	c.JSON(http.StatusOK, result())
}

// fail writes err with a status derived from its kind.
func (s *Server) fail(c *gin.Context, op string, err error) {
	status, kind := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("sale operation failed", zap.String("op", op), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error", "kind": kind})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func statusOf(err error) (int, sale.Kind) {
	switch {
	case errors.Is(err, store.ErrNoSale):
		return http.StatusNotFound, sale.KindUnknown
	case errors.Is(err, store.ErrUnknownToken):
		return http.StatusBadRequest, sale.KindInvalidArgument
	case errors.Is(err, ErrBadSigner), errors.Is(err, ErrBadSignature), errors.Is(err, ErrDeadlineTooFar):
		return http.StatusBadRequest, sale.KindInvalidArgument
	case errors.Is(err, ErrRequestExpired), errors.Is(err, wallet.ErrSignatureMismatch):
		return http.StatusUnauthorized, sale.KindAuthorizationError
	case errors.Is(err, ErrRequestReplayed):
		return http.StatusConflict, sale.KindAuthorizationError
	}

	kind := sale.KindOf(err)
	switch kind {
	case sale.KindInvalidArgument, sale.KindEntitlementError:
		return http.StatusBadRequest, kind
	case sale.KindAuthorizationError, sale.KindAdmissionDenied:
		return http.StatusForbidden, kind
	case sale.KindLifecycleViolation, sale.KindTemporalGate:
		return http.StatusConflict, kind
	case sale.KindCapacityExceeded, sale.KindInsufficientFunding:
		return http.StatusUnprocessableEntity, kind
	}
	return http.StatusInternalServerError, kind
}

func hexHash(s string) (common.Hash, error) {
	b := common.FromHex(s)
	if len(b) != common.HashLength {
		return common.Hash{}, errors.New("proof elements must be 32-byte hex")
	}
	return common.BytesToHash(b), nil
}
