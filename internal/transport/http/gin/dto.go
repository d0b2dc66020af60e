package httpgin

import (
	"github.com/kirinyoku/salonq/internal/domain"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ServiceItemInput names a requested service. Price and duration may be
// omitted when the salon publishes a roster; they are taken from it.
type ServiceItemInput struct {
	Name     string `json:"name" binding:"required"`
	Price    int64  `json:"price" binding:"gte=0"`
	Duration int    `json:"duration" binding:"gte=0"`
}

type JoinQueueRequest struct {
	SalonID       string             `json:"salon_id" binding:"required,uuid"`
	Services      []ServiceItemInput `json:"services" binding:"required,min=1,dive"`
	TotalPrice    int64              `json:"total_price" binding:"gte=0"`
	TotalDuration int                `json:"total_duration" binding:"gte=0"`
}

type WalkInRequest struct {
	GuestName   string             `json:"guest_name" binding:"required"`
	GuestMobile string             `json:"guest_mobile"`
	Services    []ServiceItemInput `json:"services" binding:"required,min=1,dive"`
}

type StartServiceRequest struct {
	ChairID   int    `json:"chair_id" binding:"required,gt=0"`
	StaffName string `json:"staff_name" binding:"required"`
}

type ExtendRequest struct {
	Minutes int `json:"minutes" binding:"required,gt=0"`
}

type SetOnlineRequest struct {
	IsOnline *bool `json:"is_online" binding:"required"`
}

type SetVerifiedRequest struct {
	IsVerified *bool `json:"is_verified" binding:"required"`
}

type ReplaceServicesRequest struct {
	Services []domain.SalonService `json:"services" binding:"required"`
}

type ReplaceStaffRequest struct {
	Staff []domain.Staff `json:"staff" binding:"required"`
}

type CreateSalonRequest struct {
	Name     string                `json:"name" binding:"required"`
	Chairs   int                   `json:"chairs" binding:"required,gt=0"`
	Services []domain.SalonService `json:"services"`
	Staff    []domain.Staff        `json:"staff"`
}

func toItems(in []ServiceItemInput) []domain.ServiceItem {
	out := make([]domain.ServiceItem, 0, len(in))
	for _, s := range in {
		out = append(out, domain.ServiceItem{
			Name:     s.Name,
			Price:    s.Price,
			Duration: s.Duration,
		})
	}
	return out
}
