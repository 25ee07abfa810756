package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pageant-backend/internal/domains/contestant"
	"pageant-backend/internal/domains/payment/bulk"
	"pageant-backend/internal/domains/payment/gateway/fonepay"
	"pageant-backend/internal/domains/payment/model"
	repo "pageant-backend/internal/domains/payment/repository"
	"pageant-backend/pkg/logger"
	"pageant-backend/pkg/metrics"
)

// =====================================================
// PAYMENT SERVICE IMPLEMENTATION
// =====================================================
type paymentService struct {
	sessionRepo    repo.PaymentRepoInterface
	contestantRepo contestant.Repository
	txManager      repo.TransactionManager

	gateway  *fonepay.Config
	verifier TransactionVerifier // nil when no API credentials are configured

	counters metrics.Counter

	unitPrice decimal.Decimal
	currency  string
	returnURL string

	// now is injectable so tests can pin DT and PRN generation.
	now func() time.Time
}

func NewPaymentService(
	sessionRepo repo.PaymentRepoInterface,
	contestantRepo contestant.Repository,
	txManager repo.TransactionManager,
	gatewayConfig *fonepay.Config,
	verifier TransactionVerifier,
	counters metrics.Counter,
	unitPrice decimal.Decimal,
	currency string,
	returnURL string,
) PaymentService {
	return &paymentService{
		sessionRepo:    sessionRepo,
		contestantRepo: contestantRepo,
		txManager:      txManager,
		gateway:        gatewayConfig,
		verifier:       verifier,
		counters:       counters,
		unitPrice:      unitPrice,
		currency:       currency,
		returnURL:      returnURL,
		now:            time.Now,
	}
}

// =====================================================
// CREATE SESSION
// =====================================================

// CreateSession opens a payment session
//
// Business Logic Flow:
// 1. Validate request
// 2. Resolve contestant (must exist and be active)
// 3. Check amount equals voteCount * unitPrice
// 4. Generate or normalize the PRN, reject duplicates
// 5. Persist the session in status 'created'
// 6. Sign the request and assemble the redirect URL
//
// Edge Cases:
// - Unknown contestant -> VOTE002
// - Amount does not match vote count -> VOTE005
// - Client-supplied PRN already used -> VOTE001
func (s *paymentService) CreateSession(ctx context.Context, req model.CreateSessionRequest) (*model.CreateSessionResponse, error) {
	// Step 1: Validate request
	if err := req.Validate(); err != nil {
		return nil, model.NewPaymentError(model.ErrCodeValidation, "Invalid request", err)
	}

	// Step 2: Resolve contestant
	target, err := s.contestantRepo.GetByID(ctx, req.Contestant)
	if err != nil {
		if errors.Is(err, contestant.ErrContestantNotFound) {
			return nil, model.NewContestantUnknownError(req.Contestant)
		}
		return nil, model.NewPaymentError(model.ErrCodeInternal, "Failed to resolve contestant", err)
	}

	// Step 3: Amount must be exactly voteCount * unitPrice. The 0.01
	// tolerance applies to what the gateway reports back, never to what
	// the client asks for.
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, model.NewPaymentError(model.ErrCodeValidation, "Invalid amount", err)
	}
	expected := s.unitPrice.Mul(decimal.NewFromInt(int64(req.Vote)))
	if !amount.Equal(expected) {
		return nil, model.NewPaymentError(
			model.ErrCodeAmount,
			fmt.Sprintf("Amount %s does not match %d votes at %s each", amount, req.Vote, s.unitPrice),
			model.ErrAmountMismatch,
		)
	}

	// Step 4: PRN
	prn := model.NewPRN(s.now())
	if req.PRN != "" {
		prn = model.NormalizePRN(req.PRN)
		if _, err := s.sessionRepo.GetByPRN(ctx, prn); err == nil {
			return nil, model.NewPaymentError(model.ErrCodeValidation, "PRN already used", nil)
		} else if !errors.Is(err, model.ErrSessionNotFound) {
			return nil, model.NewPaymentError(model.ErrCodeInternal, "Failed to check PRN", err)
		}
	}

	// Step 5: Persist the session
	session := s.buildSession(prn, target, req, amount)
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, model.NewPaymentError(model.ErrCodeInternal, "Failed to create payment session", err)
	}

	logger.Info("Payment session created", map[string]interface{}{
		"prn":        session.ReferenceID,
		"contestant": session.ContestantID,
		"votes":      session.VoteCount,
		"amount":     session.Amount.String(),
	})

	// Step 6: Redirect URL
	return &model.CreateSessionResponse{
		PRN:         session.ReferenceID,
		RedirectURL: s.buildRedirectURL(session),
	}, nil
}

func (s *paymentService) buildSession(prn string, target *contestant.Contestant, req model.CreateSessionRequest, amount decimal.Decimal) *model.PaymentSession {
	aux1 := req.R1
	if aux1 == "" {
		aux1 = model.AuxDefault
	}
	if !bulk.FitsTransport(aux1) {
		// The gateway truncates or rejects over-cap auxiliary fields, which
		// would corrupt a bulk payload in flight. Downgrade to the default
		// so crediting falls back to the primary contestant.
		logger.Warn("R1 exceeds the gateway field cap, downgrading to primary-contestant credit", map[string]interface{}{
			"prn": prn, "r1_len": len(aux1),
		})
		aux1 = model.AuxDefault
	}
	aux2 := req.R2
	if aux2 == "" {
		aux2 = model.AuxDefault
	}

	purpose := req.Description
	if purpose == "" {
		purpose = fmt.Sprintf("%d vote(s) for %s", req.Vote, target.Name)
	}

	session := &model.PaymentSession{
		ID:                 uuid.New(),
		ReferenceID:        prn,
		MerchantID:         s.gateway.MerchantID,
		ContestantID:       target.ID,
		ContestantName:     target.Name,
		VoteCount:          req.Vote,
		Amount:             amount,
		Currency:           s.currency,
		Purpose:            purpose,
		Aux1:               aux1,
		Aux2:               aux2,
		ReturnURL:          s.returnURL,
		RequestIndicator:   fonepay.RequestIndicator,
		DateToken:          s.now().Format(fonepay.DateLayout),
		ModeToken:          fonepay.ModePayment,
		Status:             model.StatusCreated,
		VerificationStatus: model.VerificationPending,
	}
	session.RequestSignature = s.signRequest(session)
	return session
}

// signRequest computes the outbound DV over the RAW values. URL encoding
// happens afterwards, in buildRedirectURL; signing encoded values is the
// classic integration mistake this split exists to prevent.
func (s *paymentService) signRequest(session *model.PaymentSession) string {
	return fonepay.SignParams(s.gateway.Secret, s.requestParams(session), fonepay.OutboundFieldOrder)
}

func (s *paymentService) requestParams(session *model.PaymentSession) map[string]string {
	return map[string]string{
		"RU":  session.ReturnURL,
		"PID": session.MerchantID,
		"PRN": session.ReferenceID,
		"AMT": session.Amount.StringFixed(2),
		"CRN": session.Currency,
		"DT":  session.DateToken,
		"RI":  session.RequestIndicator,
		"R1":  session.Aux1,
		"R2":  session.Aux2,
		"MD":  session.ModeToken,
	}
}

func (s *paymentService) buildRedirectURL(session *model.PaymentSession) string {
	values := url.Values{}
	for key, value := range s.requestParams(session) {
		values.Set(key, value)
	}
	values.Set("DV", session.RequestSignature)
	return s.gateway.GatewayURL + "?" + values.Encode()
}

// =====================================================
// LOOKUPS
// =====================================================

func (s *paymentService) GetSessionByPRN(ctx context.Context, prn string) (*model.SessionStatusResponse, error) {
	session, err := s.sessionRepo.GetByPRN(ctx, prn)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil, model.NewSessionNotFoundError(prn)
		}
		return nil, model.NewPaymentError(model.ErrCodeInternal, "Failed to load payment session", err)
	}
	return model.NewSessionStatusResponse(session), nil
}

func (s *paymentService) GetSessionByID(ctx context.Context, id uuid.UUID) (*model.SessionStatusResponse, error) {
	session, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil, model.NewSessionNotFoundError(id.String())
		}
		return nil, model.NewPaymentError(model.ErrCodeInternal, "Failed to load payment session", err)
	}
	return model.NewSessionStatusResponse(session), nil
}

func (s *paymentService) ListSessions(ctx context.Context, req *model.ListSessionsRequest) ([]*model.PaymentSession, int, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, model.NewPaymentError(model.ErrCodeValidation, "Invalid list request", err)
	}
	return s.sessionRepo.List(ctx, model.Status(req.Status), req.Page, req.Limit)
}

func (s *paymentService) GetStatistics(ctx context.Context) (*model.PaymentStatistics, error) {
	return s.sessionRepo.Stats(ctx)
}
