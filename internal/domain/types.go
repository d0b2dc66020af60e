package domain

import (
	"time"

	"github.com/google/uuid"
)

type StaffStatus string

const (
	StaffAvailable StaffStatus = "available"
	StaffBusy      StaffStatus = "busy"
	StaffOff       StaffStatus = "off"
)

// SalonService is one entry of a salon's service roster.
type SalonService struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Duration int    `json:"duration"`
	Category string `json:"category,omitempty"`
}

type Staff struct {
	Name   string      `json:"name"`
	Status StaffStatus `json:"status"`
}

type Salon struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Services     []SalonService `json:"services"`
	Staff        []Staff        `json:"staff"`
	Chairs       int            `json:"chairs"`
	IsOnline     bool           `json:"is_online"`
	IsVerified   bool           `json:"is_verified"`
	Rating       float64        `json:"rating"`
	ReviewsCount int64          `json:"reviews_count"`
	Revenue      int64          `json:"revenue"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// FindService returns the roster entry with the given name.
func (s *Salon) FindService(name string) (SalonService, bool) {
	for _, svc := range s.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return SalonService{}, false
}

func (s *Salon) FindStaff(name string) (Staff, bool) {
	for _, st := range s.Staff {
		if st.Name == name {
			return st, true
		}
	}
	return Staff{}, false
}

// SalonListing is a salon as shown in the public listing, with the live
// queue figures derived from its active tickets.
type SalonListing struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	IsOnline   bool      `json:"is_online"`
	IsVerified bool      `json:"is_verified"`
	Rating     float64   `json:"rating"`
	Waiting    int64     `json:"waiting"`
	EstTime    int64     `json:"est_time"`
}

type DayStats struct {
	Completed int64 `json:"completed"`
	Revenue   int64 `json:"revenue"`
}

// Board is a salon's live dashboard.
type Board struct {
	SalonID uuid.UUID `json:"salon_id"`
	Pending []Ticket  `json:"pending"`
	Waiting []Ticket  `json:"waiting"`
	Serving []Ticket  `json:"serving"`
	Today   DayStats  `json:"today"`
}

type AdminStats struct {
	Salons         int64                  `json:"salons"`
	OnlineSalons   int64                  `json:"online_salons"`
	VerifiedSalons int64                  `json:"verified_salons"`
	TicketsToday   map[TicketStatus]int64 `json:"tickets_today"`
	RevenueToday   int64                  `json:"revenue_today"`
	RevenueTotal   int64                  `json:"revenue_total"`
}

// ServiceDay returns local midnight of the day t falls on in loc. Daily
// stats reset at this instant.
func ServiceDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
