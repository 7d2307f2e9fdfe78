package rest

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
	"github.com/dmitrijs2005/foliokeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type manualTransactionRequest struct {
	TransactionType  string              `json:"transaction_type" binding:"required"`
	TransactionDate  string              `json:"transaction_date" binding:"required,datetime=2006-01-02"`
	SecurityName     *string             `json:"security_name" binding:"omitempty,max=500"`
	SecuritySymbol   *string             `json:"security_symbol" binding:"omitempty,max=50"`
	Quantity         decimal.NullDecimal `json:"quantity"`
	PricePerUnit     decimal.NullDecimal `json:"price_per_unit"`
	NAV              decimal.NullDecimal `json:"nav"`
	Amount           decimal.NullDecimal `json:"amount"`
	Units            decimal.NullDecimal `json:"units"`
	BrokerageCharges decimal.NullDecimal `json:"brokerage_charges"`
	ConfidenceScore  decimal.NullDecimal `json:"confidence_score"`
}

type manualStatementRequest struct {
	FileName        string                     `json:"file_name" binding:"max=255"`
	StatementDate   *string                    `json:"statement_date" binding:"omitempty,datetime=2006-01-02"`
	InstitutionName *string                    `json:"institution_name" binding:"omitempty,max=255"`
	FolioNumber     *string                    `json:"folio_number" binding:"omitempty,max=100"`
	Transactions    []manualTransactionRequest `json:"transactions" binding:"required,min=1,dive"`
}

type listQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=0"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

type statementResponse struct {
	ID                string              `json:"id"`
	UploadSessionID   string              `json:"upload_session_id"`
	FileName          string              `json:"file_name"`
	FileSizeBytes     int64               `json:"file_size_bytes"`
	StatementType     string              `json:"statement_type"`
	StatementDate     *string             `json:"statement_date"`
	InstitutionName   *string             `json:"institution_name"`
	FolioNumber       *string             `json:"folio_number"`
	ParsingConfidence decimal.NullDecimal `json:"parsing_confidence"`
	Confirmed         bool                `json:"confirmed"`
	ConfirmedAt       *time.Time          `json:"confirmed_at"`
	CreatedAt         time.Time           `json:"created_at"`
}

type transactionResponse struct {
	ID               string              `json:"id"`
	StatementID      string              `json:"statement_id"`
	TransactionType  string              `json:"transaction_type"`
	TransactionDate  string              `json:"transaction_date"`
	SecurityName     *string             `json:"security_name"`
	SecuritySymbol   *string             `json:"security_symbol"`
	Quantity         decimal.NullDecimal `json:"quantity"`
	PricePerUnit     decimal.NullDecimal `json:"price_per_unit"`
	NAV              decimal.NullDecimal `json:"nav"`
	Amount           decimal.NullDecimal `json:"amount"`
	Units            decimal.NullDecimal `json:"units"`
	BrokerageCharges decimal.NullDecimal `json:"brokerage_charges"`
	ConfidenceScore  decimal.NullDecimal `json:"confidence_score"`
	IsDuplicate      bool                `json:"is_duplicate"`
	IsConfirmed      bool                `json:"is_confirmed"`
}

type statementDetailResponse struct {
	Statement    statementResponse     `json:"statement"`
	Transactions []transactionResponse `json:"transactions"`
}

type statementListResponse struct {
	Statements []statementResponse `json:"statements"`
	Count      int                 `json:"count"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func toStatementResponse(s *models.Statement) statementResponse {
	return statementResponse{
		ID:                s.ID,
		UploadSessionID:   s.UploadSessionID,
		FileName:          s.FileName,
		FileSizeBytes:     s.FileSizeBytes,
		StatementType:     string(s.StatementType),
		StatementDate:     formatDate(s.StatementDate),
		InstitutionName:   s.InstitutionName,
		FolioNumber:       s.FolioNumber,
		ParsingConfidence: s.ParsingConfidence,
		Confirmed:         s.ConfirmedAt != nil,
		ConfirmedAt:       s.ConfirmedAt,
		CreatedAt:         s.CreatedAt,
	}
}

func toTransactionResponses(txs []*models.ParsedTransaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionResponse{
			ID:               t.ID,
			StatementID:      t.StatementID,
			TransactionType:  string(t.TransactionType),
			TransactionDate:  t.TransactionDate.Format(dateLayout),
			SecurityName:     t.SecurityName,
			SecuritySymbol:   t.SecuritySymbol,
			Quantity:         t.Quantity,
			PricePerUnit:     t.PricePerUnit,
			NAV:              t.NAV,
			Amount:           t.Amount,
			Units:            t.Units,
			BrokerageCharges: t.BrokerageCharges,
			ConfidenceScore:  t.ConfidenceScore,
			IsDuplicate:      t.IsDuplicate,
			IsConfirmed:      t.IsConfirmed,
		})
	}
	return out
}

// toManualStatement converts the request body. Dates were already checked
// by the binding tags.
func toManualStatement(req manualStatementRequest) (services.ManualStatement, error) {
	in := services.ManualStatement{
		FileName:        req.FileName,
		InstitutionName: req.InstitutionName,
		FolioNumber:     req.FolioNumber,
	}
	if req.StatementDate != nil {
		d, err := time.Parse(dateLayout, *req.StatementDate)
		if err != nil {
			return in, common.NewError(common.ErrorValidation, "statement_date must be a date in 2006-01-02 format")
		}
		in.StatementDate = &d
	}
	for _, t := range req.Transactions {
		d, err := time.Parse(dateLayout, t.TransactionDate)
		if err != nil {
			return in, common.NewError(common.ErrorValidation, "transaction_date must be a date in 2006-01-02 format")
		}
		in.Transactions = append(in.Transactions, services.ManualTransaction{
			TransactionType:  models.TransactionType(t.TransactionType),
			TransactionDate:  d,
			SecurityName:     t.SecurityName,
			SecuritySymbol:   t.SecuritySymbol,
			Quantity:         t.Quantity,
			PricePerUnit:     t.PricePerUnit,
			NAV:              t.NAV,
			Amount:           t.Amount,
			Units:            t.Units,
			BrokerageCharges: t.BrokerageCharges,
			ConfidenceScore:  t.ConfidenceScore,
		})
	}
	return in, nil
}

func (h *handler) createStatement(c *gin.Context) {
	var req manualStatementRequest
	if !h.bind(c, &req) {
		return
	}
	in, err := toManualStatement(req)
	if err != nil {
		h.fail(c, err)
		return
	}

	detail, err := h.statements.CreateManual(c.Request.Context(), currentIdentity(c).Subject, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, statementDetailResponse{
		Statement:    toStatementResponse(detail.Statement),
		Transactions: toTransactionResponses(detail.Transactions),
	})
}

func (h *handler) listStatements(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, bindingError(err))
		return
	}

	list, err := h.statements.List(c.Request.Context(), currentIdentity(c).Subject, q.Limit, q.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]statementResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toStatementResponse(s))
	}
	c.JSON(http.StatusOK, statementListResponse{Statements: out, Count: len(out)})
}

func (h *handler) getStatement(c *gin.Context) {
	s, err := h.statements.Get(c.Request.Context(), currentIdentity(c).Subject, c.Param("id"))
	if err != nil {
		h.fail(c, statementErr(err))
		return
	}
	c.JSON(http.StatusOK, toStatementResponse(s))
}

func (h *handler) statementTransactions(c *gin.Context) {
	txs, err := h.statements.Transactions(c.Request.Context(), currentIdentity(c).Subject, c.Param("id"))
	if err != nil {
		h.fail(c, statementErr(err))
		return
	}
	c.JSON(http.StatusOK, toTransactionResponses(txs))
}

func (h *handler) confirmStatement(c *gin.Context) {
	s, err := h.statements.Confirm(c.Request.Context(), currentIdentity(c).Subject, c.Param("id"))
	if err != nil {
		h.fail(c, statementErr(err))
		return
	}
	c.JSON(http.StatusOK, toStatementResponse(s))
}

// statementErr gives a bare not-found a statement-specific message.
func statementErr(err error) error {
	if err == common.ErrorNotFound {
		return common.NewError(common.ErrorNotFound, "Statement not found")
	}
	return err
}
