package handler

import (
	"net/http"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/service"
	"github.com/go-chi/chi/v5"
)

// SubscriptionHandler handles HTTP requests for webhook endpoints.
type SubscriptionHandler struct {
	subscriptionSvc *service.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subscriptionSvc *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionSvc: subscriptionSvc}
}

// upsertSubscriptionRequest is the JSON request body for POST /webhooks.
type upsertSubscriptionRequest struct {
	Subscriber string   `json:"subscriber"`
	Market     string   `json:"market"`
	URL        string   `json:"url"`
	Events     []string `json:"events"`
}

// subscriptionResponse is a single subscription in the response.
type subscriptionResponse struct {
	SubscriptionID string `json:"subscription_id"`
	Subscriber     string `json:"subscriber"`
	Market         string `json:"market"`
	Event          string `json:"event"`
	URL            string `json:"url"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// subscriptionListResponse is the JSON response for POST and GET /webhooks.
type subscriptionListResponse struct {
	Webhooks []subscriptionResponse `json:"webhooks"`
}

// Upsert handles POST /webhooks.
func (h *SubscriptionHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertSubscriptionRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	subs, anyCreated, err := h.subscriptionSvc.Upsert(service.UpsertSubscriptionRequest{
		Subscriber: req.Subscriber,
		Market:     req.Market,
		URL:        req.URL,
		Events:     req.Events,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	status := http.StatusOK
	if anyCreated {
		status = http.StatusCreated
	}

	WriteJSON(w, status, subscriptionListResponse{
		Webhooks: buildSubscriptionResponses(subs),
	})
}

// List handles GET /webhooks.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subscriber := r.URL.Query().Get("subscriber")
	if subscriber == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "subscriber query parameter is required")
		return
	}

	subs, err := h.subscriptionSvc.List(subscriber)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, subscriptionListResponse{
		Webhooks: buildSubscriptionResponses(subs),
	})
}

// Delete handles DELETE /webhooks/{subscription_id}.
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.subscriptionSvc.Delete(chi.URLParam(r, "subscription_id")); err != nil {
		mapError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// buildSubscriptionResponses converts domain subscriptions to response subscriptions.
func buildSubscriptionResponses(subs []*domain.Subscription) []subscriptionResponse {
	result := make([]subscriptionResponse, len(subs))
	for i, s := range subs {
		result[i] = subscriptionResponse{
			SubscriptionID: s.ID,
			Subscriber:     s.Subscriber,
			Market:         s.Market,
			Event:          string(s.Event),
			URL:            s.URL,
			CreatedAt:      s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			UpdatedAt:      s.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return result
}
