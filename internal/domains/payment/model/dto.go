package model

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

var prnPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// ========================================
// SESSION CREATION DTOs
// ========================================

type CreateSessionRequest struct {
	Amount      string `json:"amount"`
	Vote        int    `json:"vote"`
	Contestant  string `json:"contestant"`
	PRN         string `json:"prn,omitempty"`
	Description string `json:"description,omitempty"`
	R1          string `json:"r1,omitempty"`
	R2          string `json:"r2,omitempty"`
}

func (r CreateSessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Amount,
			validation.Required.Error("amount is required"),
			validation.By(validAmount),
		),
		validation.Field(&r.Vote,
			validation.Required.Error("vote is required"),
			validation.Min(1).Error("vote must be at least 1"),
		),
		validation.Field(&r.Contestant,
			validation.Required.Error("contestant is required"),
			validation.Length(1, 64),
		),
		validation.Field(&r.PRN,
			validation.When(r.PRN != "",
				validation.Match(prnPattern).Error("prn may only contain letters, digits, underscore and dash"),
				validation.Length(1, 64),
			),
		),
		validation.Field(&r.Description, validation.Length(0, 255)),
		// R1 may carry a bulk payload longer than the gateway cap; session
		// creation downgrades an over-cap value to the fallback payload
		// instead of rejecting it, so only a loose sanity bound applies here.
		validation.Field(&r.R1, validation.Length(0, 512)),
		// R2 has no fallback, the gateway cap is hard.
		validation.Field(&r.R2, validation.Length(0, AuxMaxLen).Error("r2 exceeds gateway field cap")),
	)
}

func validAmount(value interface{}) error {
	s, _ := value.(string)
	amt, err := decimal.NewFromString(s)
	if err != nil {
		return validation.NewError("validation_amount", "amount must be a decimal number")
	}
	if amt.LessThanOrEqual(decimal.Zero) {
		return validation.NewError("validation_amount", "amount must be positive")
	}
	return nil
}

type CreateSessionResponse struct {
	PRN         string `json:"prn"`
	RedirectURL string `json:"redirect_url"`
}

// ========================================
// RETURN CALLBACK DTO
// ========================================

// ReturnCallback is the parameter set the gateway sends back to the
// return endpoint, by query string or form body. Tags use `form` so gin
// binds either transport.
type ReturnCallback struct {
	PRN   string `form:"PRN"`
	PID   string `form:"PID"`
	PS    string `form:"PS"` // gateway success flag, "true"/"false"
	RC    string `form:"RC"` // response code, "successful" on settled payments
	UID   string `form:"UID"`
	BC    string `form:"BC"`
	INI   string `form:"INI"`
	PAmt  string `form:"P_AMT"`
	RAmt  string `form:"R_AMT"`
	DV    string `form:"DV"`
	R1    string `form:"R1"`
	R2    string `form:"R2"`
}

// Success reports whether the redirect itself claims the payment settled.
// Both the boolean flag and the response code must agree.
func (r ReturnCallback) Success() bool {
	return r.PS == "true" && r.RC == ResponseCodeSuccess
}

// HasRequiredFields checks the minimum set the handler needs before it can
// even look up a session.
func (r ReturnCallback) HasRequiredFields() bool {
	return r.PRN != "" && r.PID != "" && r.DV != ""
}

// ========================================
// STATUS LOOKUP DTOs
// ========================================

type SessionStatusResponse struct {
	PRN                string             `json:"prn"`
	ContestantID       string             `json:"contestant_id"`
	ContestantName     string             `json:"contestant_name"`
	VoteCount          int                `json:"vote_count"`
	Amount             decimal.Decimal    `json:"amount"`
	Currency           string             `json:"currency"`
	Status             Status             `json:"status"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	TraceID            *string            `json:"trace_id,omitempty"`
	BankCode           *string            `json:"bank_code,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func NewSessionStatusResponse(s *PaymentSession) *SessionStatusResponse {
	return &SessionStatusResponse{
		PRN:                s.ReferenceID,
		ContestantID:       s.ContestantID,
		ContestantName:     s.ContestantName,
		VoteCount:          s.VoteCount,
		Amount:             s.Amount,
		Currency:           s.Currency,
		Status:             s.Status,
		VerificationStatus: s.VerificationStatus,
		TraceID:            s.TraceID,
		BankCode:           s.BankCode,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

type ListSessionsRequest struct {
	Status string `form:"status"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

func (r *ListSessionsRequest) Validate() error {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 || r.Limit > 100 {
		r.Limit = 20
	}
	if r.Status != "" && !Status(r.Status).Valid() {
		return validation.NewError("validation_status", "unknown status filter")
	}
	return nil
}

type PaymentStatistics struct {
	TotalCollected decimal.Decimal `json:"total_collected"`
	SuccessCount   int             `json:"success_count"`
	PendingCount   int             `json:"pending_count"`
	FailedCount    int             `json:"failed_count"`
	ErrorCount     int             `json:"error_count"`
	VotesCredited  int64           `json:"votes_credited"`
}
