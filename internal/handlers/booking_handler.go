package handlers

import (
	"net/http"

	"github.com/Mithunp123/Dakshaa-sub002/internal/helpers"
	"github.com/Mithunp123/Dakshaa-sub002/internal/services"
	"github.com/gin-gonic/gin"
)

func CreateAccommodation(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.AccommodationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorResponse("invalid request body: "+err.Error()))
			return
		}
		if !authorized(c, in.UserID) {
			return
		}

		booking, err := b.CreateAccommodation(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(booking, "Accommodation booked, awaiting payment"))
	}
}

func CreateLunch(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.LunchInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorResponse("invalid request body: "+err.Error()))
			return
		}
		if !authorized(c, in.UserID) {
			return
		}

		booking, err := b.CreateLunch(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(booking, "Lunch booked, awaiting payment"))
	}
}

func CreateEventRegistrations(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.EventRegistrationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorResponse("invalid request body: "+err.Error()))
			return
		}
		if !authorized(c, in.UserID) {
			return
		}

		booking, err := b.CreateEventRegistrations(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(booking, "Registrations created, awaiting payment"))
	}
}

func CreateComboPurchase(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.ComboPurchaseInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorResponse("invalid request body: "+err.Error()))
			return
		}
		if !authorized(c, in.UserID) {
			return
		}

		purchase, err := b.CreateComboPurchase(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(purchase, "Combo reserved, awaiting payment"))
	}
}
