package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"rentflow/agreement"
	"rentflow/apperr"
	"rentflow/identity"
	"rentflow/logging"
	"rentflow/payment"
	"rentflow/query"
	"rentflow/rental"
)

const (
	testSecret = "test-secret"

	rentalID        = "0b7f3c1e-5a2d-4c8e-9f41-6d2a7b8c9e01"
	missingRentalID = "0b7f3c1e-5a2d-4c8e-9f41-6d2a7b8c9e02"
	agreementID     = "5e9a1d2c-3b4f-4a6e-8c7d-1f2e3a4b5c6d"
	paymentID       = "9c8b7a6d-5e4f-4321-8abc-def012345678"
	userID          = "2a3b4c5d-6e7f-4801-9a2b-3c4d5e6f7a8b"
)

func signToken(t *testing.T, email string, role identity.Role) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"role":  string(role),
		"iat":   time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type stubRentals struct {
	list      []rental.Rental
	meta      query.Meta
	params    query.Params
	created   rental.CreateInput
	createErr error
	caller    identity.Identity
}

func (s *stubRentals) Create(_ context.Context, caller identity.Identity, in rental.CreateInput) (rental.Rental, error) {
	s.caller = caller
	s.created = in
	if s.createErr != nil {
		return rental.Rental{}, s.createErr
	}
	return rental.Rental{ID: "r1", Location: in.Location, Rent: in.Rent}, nil
}

func (s *stubRentals) Get(_ context.Context, id string) (rental.Rental, error) {
	if id == missingRentalID {
		return rental.Rental{}, apperr.NotFound("Rental not found!")
	}
	return rental.Rental{ID: id}, nil
}

func (s *stubRentals) List(_ context.Context, params query.Params) ([]rental.Rental, query.Meta, error) {
	s.params = params
	return s.list, s.meta, nil
}

func (s *stubRentals) ListByLandlord(_ context.Context, caller identity.Identity, params query.Params) ([]rental.Rental, query.Meta, error) {
	s.caller = caller
	s.params = params
	return s.list, s.meta, nil
}

func (s *stubRentals) Update(_ context.Context, _ identity.Identity, id string, _ rental.UpdateInput) (rental.Rental, error) {
	return rental.Rental{ID: id}, nil
}

func (s *stubRentals) Delete(_ context.Context, _ identity.Identity, _ string) error {
	return errors.New("connection reset by peer")
}

type stubAgreements struct {
	requested agreement.RequestInput
	caller    identity.Identity
	statusErr error
	status    agreement.Status
}

func (s *stubAgreements) RequestAgreement(_ context.Context, caller identity.Identity, in agreement.RequestInput) (agreement.Agreement, error) {
	s.caller = caller
	s.requested = in
	return agreement.Agreement{ID: "a1", RentalID: in.RentalID, Status: agreement.StatusPending}, nil
}

func (s *stubAgreements) SetAgreementStatus(_ context.Context, _ identity.Identity, id string, next agreement.Status) (agreement.Agreement, error) {
	s.status = next
	if s.statusErr != nil {
		return agreement.Agreement{}, s.statusErr
	}
	return agreement.Agreement{ID: id, Status: next}, nil
}

func (s *stubAgreements) SetLandlordContact(_ context.Context, _ identity.Identity, id, contactNo string) (agreement.Agreement, error) {
	return agreement.Agreement{ID: id, LandlordContactNo: &contactNo}, nil
}

func (s *stubAgreements) DeleteAgreement(_ context.Context, _ identity.Identity, _ string) error {
	return nil
}

func (s *stubAgreements) AllAgreements(_ context.Context, caller identity.Identity, _ query.Params) ([]agreement.Agreement, query.Meta, error) {
	if err := identity.Require(caller, identity.RoleAdmin); err != nil {
		return nil, query.Meta{}, err
	}
	return nil, query.Meta{}, nil
}

func (s *stubAgreements) LandlordAgreements(_ context.Context, _ identity.Identity, _ query.Params) ([]agreement.Agreement, query.Meta, error) {
	return nil, query.Meta{}, nil
}

func (s *stubAgreements) TenantAgreements(_ context.Context, _ identity.Identity, _ query.Params) ([]agreement.Agreement, query.Meta, error) {
	return nil, query.Meta{}, nil
}

type stubPayments struct {
	transactionID string
	reconcileErr  error
	created       payment.CreateInput
}

func (s *stubPayments) CreatePayment(_ context.Context, _ identity.Identity, in payment.CreateInput) (payment.Checkout, error) {
	s.created = in
	return payment.Checkout{PaymentURL: "https://sandbox.example.com/pay/1"}, nil
}

func (s *stubPayments) Reconcile(_ context.Context, _ identity.Identity, transactionID string) (payment.Payment, error) {
	s.transactionID = transactionID
	if s.reconcileErr != nil {
		return payment.Payment{}, s.reconcileErr
	}
	return payment.Payment{TransactionID: transactionID, Status: payment.StatusPaid}, nil
}

func (s *stubPayments) ChangePaymentStatus(_ context.Context, _ identity.Identity, id string, next payment.Status) (payment.Payment, error) {
	return payment.Payment{ID: id, Status: next}, nil
}

func (s *stubPayments) GetPaymentDetails(_ context.Context, _ identity.Identity, id string) (payment.Payment, error) {
	return payment.Payment{ID: id}, nil
}

func (s *stubPayments) AllPayments(_ context.Context, _ identity.Identity, _ query.Params) ([]payment.Payment, query.Meta, error) {
	return nil, query.Meta{}, nil
}

func (s *stubPayments) LandlordPayments(_ context.Context, _ identity.Identity, _ query.Params) ([]payment.Payment, query.Meta, error) {
	return nil, query.Meta{}, nil
}

func (s *stubPayments) TenantPayments(_ context.Context, _ identity.Identity, _ query.Params) ([]payment.Payment, query.Meta, error) {
	return nil, query.Meta{}, nil
}

type stubUsers struct {
	params query.Params
	role   identity.Role
	status identity.UserStatus
}

func (s *stubUsers) ListUsers(_ context.Context, caller identity.Identity, params query.Params) ([]identity.User, query.Meta, error) {
	if err := identity.Require(caller, identity.RoleAdmin); err != nil {
		return nil, query.Meta{}, err
	}
	s.params = params
	return []identity.User{{ID: userID, Role: identity.RoleTenant}}, query.Meta{Page: 1, Limit: 10, Total: 1, TotalPage: 1}, nil
}

func (s *stubUsers) ChangeRole(_ context.Context, _ identity.Identity, id string, role identity.Role) (identity.User, error) {
	s.role = role
	return identity.User{ID: id, Role: role}, nil
}

func (s *stubUsers) ChangeStatus(_ context.Context, _ identity.Identity, id string, status identity.UserStatus) (identity.User, error) {
	s.status = status
	return identity.User{ID: id, Status: status}, nil
}

type testServer struct {
	rentals    *stubRentals
	agreements *stubAgreements
	payments   *stubPayments
	users      *stubUsers
	handler    http.Handler
}

func newTestServer() *testServer {
	ts := &testServer{
		rentals:    &stubRentals{},
		agreements: &stubAgreements{},
		payments:   &stubPayments{},
		users:      &stubUsers{},
	}
	srv := &Server{
		rentals:    ts.rentals,
		agreements: ts.agreements,
		payments:   ts.payments,
		users:      ts.users,
		verifier:   identity.NewTokenVerifier(testSecret),
		logger:     logging.Nop(),
	}
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthz_Unavailable(t *testing.T) {
	srv := &Server{
		verifier: identity.NewTokenVerifier(testSecret),
		logger:   logging.Nop(),
		ready:    func(context.Context) error { return errors.New("pool closed") },
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestListRentals_PublicWithMeta(t *testing.T) {
	ts := newTestServer()
	ts.rentals.list = []rental.Rental{{ID: "r11"}, {ID: "r12"}}
	ts.rentals.meta = query.Meta{Page: 2, Limit: 10, Total: 25, TotalPage: 3}

	rec := ts.do(http.MethodGet, "/api/v1/rentals?limit=10&page=2&sort=-rent", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Success bool            `json:"success"`
		Meta    query.Meta      `json:"meta"`
		Data    []rental.Rental `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success || len(payload.Data) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Meta != (query.Meta{Page: 2, Limit: 10, Total: 25, TotalPage: 3}) {
		t.Fatalf("unexpected meta: %+v", payload.Meta)
	}
	if ts.rentals.params["sort"] != "-rent" || ts.rentals.params["page"] != "2" {
		t.Fatalf("query params not forwarded: %+v", ts.rentals.params)
	}
}

func TestGetRental_NotFound(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/api/v1/rentals/"+missingRentalID, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Message != "Rental not found!" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestMalformedIDs_AreNotFound(t *testing.T) {
	ts := newTestServer()
	landlord := "Bearer " + signToken(t, "landlord@example.com", identity.RoleLandlord)
	admin := "Bearer " + signToken(t, "admin@example.com", identity.RoleAdmin)

	tests := []struct {
		method, target, token, body, message string
	}{
		{http.MethodGet, "/api/v1/rentals/abc", "", "", "Rental not found!"},
		{http.MethodDelete, "/api/v1/rentals/abc", landlord, "", "Rental not found!"},
		{http.MethodDelete, "/api/v1/agreements/xyz", landlord, "", "Agreement not found!"},
		{http.MethodPut, "/api/v1/agreements/status/xyz", landlord, `{"status":"approved"}`, "Agreement not found!"},
		{http.MethodGet, "/api/v1/payments/details/p1", admin, "", "Payment not found!"},
		{http.MethodPut, "/api/v1/users/change-status/u1", admin, `{"status":"blocked"}`, "User not found!"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			rec := ts.do(tc.method, tc.target, tc.token, tc.body)
			if rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Message != tc.message {
				t.Fatalf("unexpected message %q", resp.Message)
			}
		})
	}
}

func TestRequestAgreement_RentalMustBeUUID(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "tenant@example.com", identity.RoleTenant)

	rec := ts.do(http.MethodPost, "/api/v1/agreements", "Bearer "+token, `{"rental":"r1","moveInDate":"2025-03-01","durationMonth":6}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); !strings.Contains(resp.Message, "rental") {
		t.Fatalf("expected rental in validation message, got %q", resp.Message)
	}
}

func TestErrorHandler_WrappedHTTPError(t *testing.T) {
	ts := newTestServer()
	ts.agreements.statusErr = fmt.Errorf("agreement: set status: %w", apperr.Conflict("Agreement is already rejected!"))
	token := signToken(t, "landlord@example.com", identity.RoleLandlord)

	rec := ts.do(http.MethodPut, "/api/v1/agreements/status/"+agreementID, "Bearer "+token, `{"status":"approved"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Message != "Agreement is already rejected!" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestLandlordRentals_RequiresToken(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rentals/landlord", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Message != "You are not authorized!" || resp.RequestID != "req-123" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestAuth_RejectsForgedToken(t *testing.T) {
	ts := newTestServer()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "l@example.com",
		"role":  "landlord",
		"iat":   time.Now().Unix(),
	})
	forged, err := token.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rec := ts.do(http.MethodGet, "/api/v1/rentals/landlord", "Bearer "+forged, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuth_AcceptsBearerAndRawToken(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "landlord@example.com", identity.RoleLandlord)

	for _, header := range []string{"Bearer " + token, token} {
		rec := ts.do(http.MethodGet, "/api/v1/rentals/landlord", header, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %q, got %d", header[:6], rec.Code)
		}
		if ts.rentals.caller.Email != "landlord@example.com" || ts.rentals.caller.Role != identity.RoleLandlord {
			t.Fatalf("caller not forwarded: %+v", ts.rentals.caller)
		}
	}
}

func TestCreateRental_ValidationError(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "landlord@example.com", identity.RoleLandlord)

	rec := ts.do(http.MethodPost, "/api/v1/rentals", "Bearer "+token, `{"location":"Dhaka","description":"2 bed flat","rent":5000,"bedrooms":2}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); !strings.Contains(resp.Message, "images") {
		t.Fatalf("expected images in validation message, got %q", resp.Message)
	}
}

func TestCreateRental_Success(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "landlord@example.com", identity.RoleLandlord)

	body := `{"location":"Dhaka","description":"2 bed flat","rent":"5000.50","bedrooms":2,"images":["https://img.example.com/1.jpg"]}`
	rec := ts.do(http.MethodPost, "/api/v1/rentals", "Bearer "+token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !ts.rentals.created.Rent.Equal(decimal.RequireFromString("5000.50")) {
		t.Fatalf("unexpected rent %s", ts.rentals.created.Rent)
	}
	if len(ts.rentals.created.Images) != 1 {
		t.Fatalf("images not forwarded: %+v", ts.rentals.created)
	}
}

func TestDeleteRental_InfrastructureErrorIsMasked(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "landlord@example.com", identity.RoleLandlord)

	rec := ts.do(http.MethodDelete, "/api/v1/rentals/"+rentalID, "Bearer "+token, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Message != "Internal Server Error" {
		t.Fatalf("infrastructure detail leaked: %q", resp.Message)
	}
}

func TestRequestAgreement_ParsesDate(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "tenant@example.com", identity.RoleTenant)

	rec := ts.do(http.MethodPost, "/api/v1/agreements", "Bearer "+token, `{"rental":"`+rentalID+`","moveInDate":"2025-03-01","durationMonth":6}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !ts.agreements.requested.MoveInDate.Equal(want) || ts.agreements.requested.DurationMonths != 6 {
		t.Fatalf("unexpected input: %+v", ts.agreements.requested)
	}
	if ts.agreements.caller.Role != identity.RoleTenant {
		t.Fatalf("caller not forwarded: %+v", ts.agreements.caller)
	}
}

func TestRequestAgreement_BadDate(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "tenant@example.com", identity.RoleTenant)

	rec := ts.do(http.MethodPost, "/api/v1/agreements", "Bearer "+token, `{"rental":"`+rentalID+`","moveInDate":"next week","durationMonth":6}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAgreementStatus_ConflictPropagates(t *testing.T) {
	ts := newTestServer()
	ts.agreements.statusErr = apperr.Conflict("Agreement is already %s!", agreement.StatusApproved)
	token := signToken(t, "landlord@example.com", identity.RoleLandlord)

	rec := ts.do(http.MethodPut, "/api/v1/agreements/status/"+agreementID, "Bearer "+token, `{"status":"approved"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if ts.agreements.status != agreement.StatusApproved {
		t.Fatalf("status not forwarded: %q", ts.agreements.status)
	}
	if resp := decodeError(t, rec); resp.Message != "Agreement is already approved!" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestAllAgreements_AdminOnly(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "tenant@example.com", identity.RoleTenant)

	rec := ts.do(http.MethodGet, "/api/v1/agreements", "Bearer "+token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCreatePayment_ReturnsURL(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "tenant@example.com", identity.RoleTenant)

	rec := ts.do(http.MethodPost, "/api/v1/payments", "Bearer "+token, `{"agreement":"`+agreementID+`","months":["Jan","Feb"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Data payment.Checkout `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.PaymentURL == "" {
		t.Fatalf("missing payment url: %s", rec.Body.String())
	}
	if len(ts.payments.created.Months) != 2 || ts.payments.created.AgreementID != agreementID {
		t.Fatalf("unexpected input: %+v", ts.payments.created)
	}
}

func TestValidatePayment_ForwardsTransactionID(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "tenant@example.com", identity.RoleTenant)

	rec := ts.do(http.MethodPatch, "/api/v1/payments/validate?tran_id=123456ABCDEFGHIJ", "Bearer "+token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ts.payments.transactionID != "123456ABCDEFGHIJ" {
		t.Fatalf("unexpected transaction id %q", ts.payments.transactionID)
	}
}

func TestValidatePayment_FailedOutcome(t *testing.T) {
	ts := newTestServer()
	ts.payments.reconcileErr = apperr.ExpectationFailed("Payment failed!")
	token := signToken(t, "tenant@example.com", identity.RoleTenant)

	rec := ts.do(http.MethodPatch, "/api/v1/payments/validate?tran_id=tx", "Bearer "+token, "")
	if rec.Code != http.StatusExpectationFailed {
		t.Fatalf("expected 417, got %d", rec.Code)
	}
}

func TestPaymentStatus_RejectsUnknownStatus(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "admin@example.com", identity.RoleAdmin)

	rec := ts.do(http.MethodPatch, "/api/v1/payments/"+paymentID+"/status", "Bearer "+token, `{"status":"Refunded"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = ts.do(http.MethodPatch, "/api/v1/payments/"+paymentID+"/status", "Bearer "+token, `{"status":"Paid"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListUsers_AdminOnly(t *testing.T) {
	ts := newTestServer()

	if rec := ts.do(http.MethodGet, "/api/v1/users", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	tenant := signToken(t, "tenant@example.com", identity.RoleTenant)
	if rec := ts.do(http.MethodGet, "/api/v1/users", "Bearer "+tenant, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	admin := signToken(t, "admin@example.com", identity.RoleAdmin)
	rec := ts.do(http.MethodGet, "/api/v1/users?searchTerm=blocked&role=tenant", "Bearer "+admin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.users.params["searchTerm"] != "blocked" || ts.users.params["role"] != "tenant" {
		t.Fatalf("query params not forwarded: %+v", ts.users.params)
	}
}

func TestChangeRole_RejectsAdminRole(t *testing.T) {
	ts := newTestServer()
	admin := signToken(t, "admin@example.com", identity.RoleAdmin)

	rec := ts.do(http.MethodPut, "/api/v1/users/change-role/"+userID, "Bearer "+admin, `{"role":"admin"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = ts.do(http.MethodPut, "/api/v1/users/change-role/"+userID, "Bearer "+admin, `{"role":"landlord"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.users.role != identity.RoleLandlord {
		t.Fatalf("role not forwarded: %q", ts.users.role)
	}
}

func TestChangeStatus_Blocks(t *testing.T) {
	ts := newTestServer()
	admin := signToken(t, "admin@example.com", identity.RoleAdmin)

	rec := ts.do(http.MethodPut, "/api/v1/users/change-status/"+userID, "Bearer "+admin, `{"status":"blocked"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.users.status != identity.StatusBlocked {
		t.Fatalf("status not forwarded: %q", ts.users.status)
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2025-03-01T10:00:00+06:00")
	if err != nil {
		t.Fatalf("parse rfc3339: %v", err)
	}
	if got.UTC().Hour() != 4 {
		t.Fatalf("unexpected time %s", got)
	}
	if _, err := parseDate("01/03/2025"); !apperr.Is(err, http.StatusBadRequest) {
		t.Fatalf("expected 400, got %v", err)
	}
}
