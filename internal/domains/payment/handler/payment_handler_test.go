package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageant-backend/internal/domains/payment/model"
	"pageant-backend/internal/domains/payment/service"
)

const statusPage = "http://localhost:3000/payment/status"

// stubPaymentService scripts service answers per test.
type stubPaymentService struct {
	createResp    *model.CreateSessionResponse
	createErr     error
	returnOutcome *service.ReturnOutcome
	statusResp    *model.SessionStatusResponse
	statusErr     error
}

func (s *stubPaymentService) CreateSession(_ context.Context, _ model.CreateSessionRequest) (*model.CreateSessionResponse, error) {
	return s.createResp, s.createErr
}

func (s *stubPaymentService) HandleReturn(_ context.Context, _ *model.ReturnCallback) *service.ReturnOutcome {
	return s.returnOutcome
}

func (s *stubPaymentService) GetSessionByPRN(_ context.Context, _ string) (*model.SessionStatusResponse, error) {
	return s.statusResp, s.statusErr
}

func (s *stubPaymentService) GetSessionByID(_ context.Context, _ uuid.UUID) (*model.SessionStatusResponse, error) {
	return s.statusResp, s.statusErr
}

func (s *stubPaymentService) ListSessions(_ context.Context, _ *model.ListSessionsRequest) ([]*model.PaymentSession, int, error) {
	return nil, 0, nil
}

func (s *stubPaymentService) GetStatistics(_ context.Context) (*model.PaymentStatistics, error) {
	return &model.PaymentStatistics{}, nil
}

func newTestRouter(stub *stubPaymentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPaymentHandler(stub, statusPage)

	router := gin.New()
	router.POST("/payments", h.CreateSession)
	router.GET("/payments/return", h.HandleReturn)
	router.POST("/payments/return", h.HandleReturn)
	router.GET("/payments/prn/:prn", h.GetByPRN)
	return router
}

func TestCreateSessionReturns201(t *testing.T) {
	stub := &stubPaymentService{
		createResp: &model.CreateSessionResponse{PRN: "prn_1", RedirectURL: "https://gateway?PRN=prn_1"},
	}
	router := newTestRouter(stub)

	body := `{"amount":"5.00","vote":5,"contestant":"C1"}`
	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool                        `json:"success"`
		Data    model.CreateSessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "prn_1", resp.Data.PRN)
}

func TestCreateSessionMapsServiceErrors(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{model.ErrCodeValidation, http.StatusBadRequest},
		{model.ErrCodeAmount, http.StatusBadRequest},
		{model.ErrCodeContestantUnknown, http.StatusNotFound},
		{model.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		stub := &stubPaymentService{createErr: model.NewPaymentError(tc.code, "boom", nil)}
		router := newTestRouter(stub)

		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"vote":1}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, tc.want, rec.Code, "code %s", tc.code)
	}
}

func TestHandleReturnRedirectsToStatusPage(t *testing.T) {
	stub := &stubPaymentService{returnOutcome: &service.ReturnOutcome{PRN: "prn_42"}}
	router := newTestRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/payments/return?PRN=prn_42&PID=MER123&DV=ABC", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "prn_42", location.Query().Get("prn"))
	assert.Empty(t, location.Query().Get("error"))
	assert.True(t, strings.HasPrefix(location.String(), statusPage))
}

func TestHandleReturnRedirectsWithErrorCode(t *testing.T) {
	stub := &stubPaymentService{returnOutcome: &service.ReturnOutcome{
		PRN:       "prn_42",
		ErrorCode: model.RedirectErrDVMismatch,
	}}
	router := newTestRouter(stub)

	// The gateway may also POST the callback as a form.
	form := url.Values{"PRN": {"prn_42"}, "PID": {"MER123"}, "DV": {"ABC"}}
	req := httptest.NewRequest(http.MethodPost, "/payments/return", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, model.RedirectErrDVMismatch, location.Query().Get("error"))
	assert.Equal(t, "prn_42", location.Query().Get("prn"))
}

func TestGetByPRNDisablesCaching(t *testing.T) {
	stub := &stubPaymentService{statusResp: &model.SessionStatusResponse{
		PRN:    "prn_42",
		Status: model.StatusSuccess,
	}}
	router := newTestRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/payments/prn/prn_42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestGetByPRNNotFound(t *testing.T) {
	stub := &stubPaymentService{statusErr: model.NewSessionNotFoundError("prn_404")}
	router := newTestRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/payments/prn/prn_404", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
