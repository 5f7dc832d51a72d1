package request

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

const dateLayout = string(domain.DayKeyLayout)

type DateRangeRequest struct {
	Start string `json:"start" example:"2024-05-14"`
	End   string `json:"end" example:"2024-05-16"`
}

func (req DateRangeRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Start, validation.Required, validation.Date(dateLayout)),
		validation.Field(&req.End, validation.Required, validation.Date(dateLayout)),
	)
}

type CreateEventRequest struct {
	Name        string             `json:"name"`
	Location    string             `json:"location"`
	DateRanges  []DateRangeRequest `json:"date_ranges"`
	CheckinMode string             `json:"checkin_mode" example:"auto"`
}

func (req *CreateEventRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&req.Location, validation.Length(0, 200)),
		validation.Field(&req.DateRanges,
			validation.Required,
			validation.Length(1, domain.MaxDateRanges),
			validation.By(maxSpan),
		),
		validation.Field(&req.CheckinMode, validation.In(
			string(domain.CheckinModeAuto),
			string(domain.CheckinModePerDay),
			string(domain.CheckinModeCollective),
		)),
	)
}

// maxSpan rejects schedules longer than domain.MaxEventDays. Malformed dates
// are left to the per-range rules.
func maxSpan(value interface{}) error {
	ranges, _ := value.([]DateRangeRequest)
	event := domain.Event{}
	for _, r := range ranges {
		start, err := time.Parse(dateLayout, r.Start)
		if err != nil {
			return nil
		}
		end, err := time.Parse(dateLayout, r.End)
		if err != nil {
			return nil
		}
		event.DateRanges = append(event.DateRanges, domain.DateRange{Start: start, End: end})
	}
	if event.SpanDays() > domain.MaxEventDays {
		return fmt.Errorf("the event may span at most %d days", domain.MaxEventDays)
	}
	return nil
}

func (req *CreateEventRequest) ToDomain(ownerID uint) (domain.Event, error) {
	event := domain.Event{
		OwnerID:     ownerID,
		Name:        req.Name,
		Location:    req.Location,
		CheckinMode: domain.CheckinMode(req.CheckinMode),
	}
	for i, r := range req.DateRanges {
		start, err := time.Parse(dateLayout, r.Start)
		if err != nil {
			return domain.Event{}, fmt.Errorf("date_ranges[%d].start: %w", i, err)
		}
		end, err := time.Parse(dateLayout, r.End)
		if err != nil {
			return domain.Event{}, fmt.Errorf("date_ranges[%d].end: %w", i, err)
		}
		if end.Before(start) {
			return domain.Event{}, fmt.Errorf("date_ranges[%d] ends before it starts", i)
		}
		event.DateRanges = append(event.DateRanges, domain.DateRange{Start: start, End: end})
	}

	return event, nil
}

type CreateRegistrationRequest struct {
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Organization string            `json:"organization"`
	Phone        string            `json:"phone"`
	Address      string            `json:"address"`
	Answers      map[string]string `json:"answers"`
}

func (req *CreateRegistrationRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&req.Email, is.Email),
		validation.Field(&req.Phone, validation.Length(0, 40)),
	)
}

func (req *CreateRegistrationRequest) ToDomain(ownerID, eventID uint) domain.Registration {
	return domain.Registration{
		OwnerID:      ownerID,
		EventID:      eventID,
		Name:         req.Name,
		Email:        req.Email,
		Organization: req.Organization,
		Phone:        req.Phone,
		Address:      req.Address,
		Answers:      req.Answers,
	}
}
