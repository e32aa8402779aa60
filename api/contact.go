package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskboard-api/domain"
	"taskboard-api/storage"
)

// Fixed shape of the lead task created for every intake submission.
const (
	contactActor    = "website"
	contactBusiness = "synergy"
	contactAssignee = "michael"
	defaultService  = "General Inquiry"
	defaultContact  = "email"
)

// postContact handles the unauthenticated intake form: it records the
// submission and creates a lead task on the board through the same
// CreateTask contract every other caller uses.
func postContact(engine Engine, contacts Contacts) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req contactRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, successResponse{Success: false, Message: "Invalid body"})
		}
		if req.Name == "" || req.Email == "" || req.Phone == "" || req.Message == "" {
			return c.JSON(http.StatusBadRequest, successResponse{Success: false, Message: "Missing required fields"})
		}
		if req.Service == "" {
			req.Service = defaultService
		}
		if req.PreferredContact == "" {
			req.PreferredContact = defaultContact
		}

		sub := storage.Submission{
			ID:               uuid.NewString(),
			Name:             req.Name,
			Email:            req.Email,
			Phone:            req.Phone,
			Service:          req.Service,
			PreferredContact: req.PreferredContact,
			Message:          req.Message,
			CreatedAt:        time.Now().UTC(),
		}
		if err := contacts.Append(sub); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, successResponse{Success: false, Message: "Failed to record submission"})
		}

		_, err := engine.CreateTask(contactActor, domain.CreateTaskInput{
			Title: fmt.Sprintf("Website Lead: %s - %s", req.Name, req.Service),
			Description: fmt.Sprintf(
				"**Contact:** %s\n**Email:** %s\n**Phone:** %s\n**Service:** %s\n**Preferred Contact:** %s\n\n**Message:**\n%s",
				req.Name, req.Email, req.Phone, req.Service, req.PreferredContact, req.Message,
			),
			Business: contactBusiness,
			Priority: domain.PriorityUrgent,
			Stage:    domain.StageTodo,
			Assignee: contactAssignee,
		})
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, successResponse{Success: false, Message: "Failed to create lead task"})
		}

		return c.JSON(http.StatusOK, successResponse{Success: true, Message: "Thank you! We will contact you within 24 hours."})
	}
}
