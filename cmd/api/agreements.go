package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"rentflow/agreement"
	"rentflow/apperr"
	"rentflow/query"
)

type requestAgreementRequest struct {
	Rental        string `json:"rental" validate:"required,uuid"`
	MoveInDate    string `json:"moveInDate" validate:"required"`
	DurationMonth int    `json:"durationMonth"`
}

type agreementStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type landlordContactRequest struct {
	LandlordContactNo string `json:"landlordContactNo" validate:"required,min=6,max=20"`
}

// parseDate accepts RFC 3339 timestamps and plain calendar dates.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.BadRequest("Invalid move-in date %q!", raw)
	}
	return t, nil
}

func (s *Server) handleRequestAgreement(c echo.Context) error {
	var req requestAgreementRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	moveIn, err := parseDate(req.MoveInDate)
	if err != nil {
		return err
	}
	rec, err := s.agreements.RequestAgreement(c.Request().Context(), callerFrom(c), agreement.RequestInput{
		RentalID:       req.Rental,
		MoveInDate:     moveIn,
		DurationMonths: req.DurationMonth,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Agreement request sent successfully!", rec)
}

func (s *Server) handleAllAgreements(c echo.Context) error {
	recs, meta, err := s.agreements.AllAgreements(c.Request().Context(), callerFrom(c), query.FromValues(c.QueryParams()))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "Agreements retrieved successfully!", recs, meta)
}

func (s *Server) handleLandlordAgreements(c echo.Context) error {
	recs, meta, err := s.agreements.LandlordAgreements(c.Request().Context(), callerFrom(c), query.FromValues(c.QueryParams()))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "Agreements retrieved successfully!", recs, meta)
}

func (s *Server) handleTenantAgreements(c echo.Context) error {
	recs, meta, err := s.agreements.TenantAgreements(c.Request().Context(), callerFrom(c), query.FromValues(c.QueryParams()))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "Agreements retrieved successfully!", recs, meta)
}

func (s *Server) handleAgreementStatus(c echo.Context) error {
	id, err := pathID(c, "id", "Agreement")
	if err != nil {
		return err
	}
	var req agreementStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := s.agreements.SetAgreementStatus(c.Request().Context(), callerFrom(c), id, agreement.Status(req.Status))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Agreement status updated successfully!", rec)
}

func (s *Server) handleLandlordContact(c echo.Context) error {
	id, err := pathID(c, "id", "Agreement")
	if err != nil {
		return err
	}
	var req landlordContactRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := s.agreements.SetLandlordContact(c.Request().Context(), callerFrom(c), id, req.LandlordContactNo)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Landlord contact number updated successfully!", rec)
}

func (s *Server) handleDeleteAgreement(c echo.Context) error {
	id, err := pathID(c, "id", "Agreement")
	if err != nil {
		return err
	}
	if err := s.agreements.DeleteAgreement(c.Request().Context(), callerFrom(c), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Agreement deleted successfully!", nil)
}
