package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"rentflow/query"
	"rentflow/rental"
)

type createRentalRequest struct {
	Location    string          `json:"location" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Rent        decimal.Decimal `json:"rent"`
	Bedrooms    int             `json:"bedrooms" validate:"gte=0"`
	Images      []string        `json:"images" validate:"required,min=1,dive,url"`
}

type updateRentalRequest struct {
	Location    *string          `json:"location" validate:"omitempty,min=1"`
	Description *string          `json:"description" validate:"omitempty,min=1"`
	Rent        *decimal.Decimal `json:"rent"`
	Bedrooms    *int             `json:"bedrooms" validate:"omitempty,gte=0"`
	Images      []string         `json:"images" validate:"omitempty,dive,url"`
}

func (s *Server) handleListRentals(c echo.Context) error {
	recs, meta, err := s.rentals.List(c.Request().Context(), query.FromValues(c.QueryParams()))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "Rentals retrieved successfully!", recs, meta)
}

func (s *Server) handleLandlordRentals(c echo.Context) error {
	recs, meta, err := s.rentals.ListByLandlord(c.Request().Context(), callerFrom(c), query.FromValues(c.QueryParams()))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "Rentals retrieved successfully!", recs, meta)
}

func (s *Server) handleGetRental(c echo.Context) error {
	id, err := pathID(c, "id", "Rental")
	if err != nil {
		return err
	}
	rec, err := s.rentals.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Rental retrieved successfully!", rec)
}

func (s *Server) handleCreateRental(c echo.Context) error {
	var req createRentalRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := s.rentals.Create(c.Request().Context(), callerFrom(c), rental.CreateInput{
		Location:    req.Location,
		Description: req.Description,
		Rent:        req.Rent,
		Bedrooms:    req.Bedrooms,
		Images:      req.Images,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Rental created successfully!", rec)
}

func (s *Server) handleUpdateRental(c echo.Context) error {
	id, err := pathID(c, "id", "Rental")
	if err != nil {
		return err
	}
	var req updateRentalRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := s.rentals.Update(c.Request().Context(), callerFrom(c), id, rental.UpdateInput{
		Location:    req.Location,
		Description: req.Description,
		Rent:        req.Rent,
		Bedrooms:    req.Bedrooms,
		Images:      req.Images,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Rental updated successfully!", rec)
}

func (s *Server) handleDeleteRental(c echo.Context) error {
	id, err := pathID(c, "id", "Rental")
	if err != nil {
		return err
	}
	if err := s.rentals.Delete(c.Request().Context(), callerFrom(c), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Rental deleted successfully!", nil)
}
