package request

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

func TestSignupRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SignupRequest
		wantErr error
		invalid bool
	}{
		{
			name: "valid",
			req:  SignupRequest{Email: "ada@example.com", Password: "abcd1234", ConfirmPassword: "abcd1234", Name: "Ada"},
		},
		{
			name:    "letters only",
			req:     SignupRequest{Email: "ada@example.com", Password: "abcdefgh", ConfirmPassword: "abcdefgh", Name: "Ada"},
			wantErr: errInvalidPassword,
		},
		{
			name:    "digits only",
			req:     SignupRequest{Email: "ada@example.com", Password: "12345678", ConfirmPassword: "12345678", Name: "Ada"},
			wantErr: errInvalidPassword,
		},
		{
			name:    "too short",
			req:     SignupRequest{Email: "ada@example.com", Password: "ab12", ConfirmPassword: "ab12", Name: "Ada"},
			wantErr: errInvalidPassword,
		},
		{
			name:    "mismatch",
			req:     SignupRequest{Email: "ada@example.com", Password: "abcd1234", ConfirmPassword: "abcd12345", Name: "Ada"},
			wantErr: errConfirmPasswordMismatch,
		},
		{
			name:    "bad email",
			req:     SignupRequest{Email: "ada", Password: "abcd1234", ConfirmPassword: "abcd1234", Name: "Ada"},
			invalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.invalid:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateEventRequest_ToDomain(t *testing.T) {
	req := CreateEventRequest{
		Name:        "GopherCon",
		CheckinMode: "per_day",
		DateRanges: []DateRangeRequest{
			{Start: "2024-06-10", End: "2024-06-11"},
		},
	}
	require.NoError(t, req.Validate())

	event, err := req.ToDomain(3)
	require.NoError(t, err)
	assert.Equal(t, uint(3), event.OwnerID)
	assert.Equal(t, domain.CheckinModePerDay, event.CheckinMode)
	require.Len(t, event.DateRanges, 1)
	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), event.DateRanges[0].End)

	req.DateRanges = []DateRangeRequest{{Start: "2024-06-11", End: "2024-06-10"}}
	_, err = req.ToDomain(3)
	assert.Error(t, err)
}

func TestCreateEventRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  CreateEventRequest
	}{
		{"no name", CreateEventRequest{DateRanges: []DateRangeRequest{{Start: "2024-06-10", End: "2024-06-10"}}}},
		{"no dates", CreateEventRequest{Name: "Meetup"}},
		{"bad date", CreateEventRequest{Name: "Meetup", DateRanges: []DateRangeRequest{{Start: "10/06/2024", End: "2024-06-10"}}}},
		{"longer than a year", CreateEventRequest{Name: "Meetup", DateRanges: []DateRangeRequest{{Start: "1900-01-01", End: "2900-12-31"}}}},
		{"unknown mode", CreateEventRequest{Name: "Meetup", CheckinMode: "weekly", DateRanges: []DateRangeRequest{{Start: "2024-06-10", End: "2024-06-10"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.req.Validate())
		})
	}
}

func TestGenerateCertificatesRequest_Validate(t *testing.T) {
	ok := GenerateCertificatesRequest{TemplateID: 1, RegistrationIDs: []uint{1, 2}}
	assert.NoError(t, ok.Validate())

	mail := ok
	mail.SendEmail = true
	assert.Error(t, mail.Validate())
	mail.EmailSubject = "Your certificate for {{event_name}}"
	mail.EmailBody = "Hi {{name}}"
	assert.NoError(t, mail.Validate())

	tooMany := GenerateCertificatesRequest{TemplateID: 1, RegistrationIDs: make([]uint, maxBatch+1)}
	assert.Error(t, tooMany.Validate())

	noTemplate := GenerateCertificatesRequest{RegistrationIDs: []uint{1}}
	assert.Error(t, noTemplate.Validate())
}

func TestSetCheckinStatusRequest_Validate(t *testing.T) {
	assert.NoError(t, (&SetCheckinStatusRequest{RegistrationID: 1, Status: "done"}).Validate())
	assert.NoError(t, (&SetCheckinStatusRequest{RegistrationID: 1, Status: "undone", Day: "2024-06-10"}).Validate())
	assert.Error(t, (&SetCheckinStatusRequest{RegistrationID: 1, Status: "toggled"}).Validate())
	assert.Error(t, (&SetCheckinStatusRequest{Status: "done"}).Validate())
	assert.Error(t, (&SetCheckinStatusRequest{RegistrationID: 1, Status: "done", Day: "June 10"}).Validate())
}
