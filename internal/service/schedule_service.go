package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/roombook-api/internal/dto"
	"github.com/noah-isme/roombook-api/internal/models"
	appErrors "github.com/noah-isme/roombook-api/pkg/errors"
)

type bookingCreator interface {
	Create(ctx context.Context, req dto.CreateBookingRequest, ownerID, ownerName string) (*models.Booking, error)
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ScheduleService expands a recurrence rule into individual booking
// attempts. Each occurrence goes through the exact same create path as
// an ad-hoc booking, so bulk scheduling cannot bypass conflict
// detection. Conflicting occurrences are skipped and reported; the
// batch never aborts on a conflict.
type ScheduleService struct {
	creator   bookingCreator
	validator *validator.Validate
	maxMonths int
	logger    *zap.Logger
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(creator bookingCreator, validate *validator.Validate, maxMonths int, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if maxMonths <= 0 {
		maxMonths = 6
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{creator: creator, validator: validate, maxMonths: maxMonths, logger: logger}
}

// Expand enumerates the rule's occurrences and attempts to create each.
func (s *ScheduleService) Expand(ctx context.Context, req dto.BulkScheduleRequest, ownerID, ownerName string) (*dto.BulkScheduleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk schedule payload")
	}
	if req.DurationMonths > s.maxMonths {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duration exceeds the %d month limit", s.maxMonths))
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	startOfDay, err := time.Parse("15:04", req.StartTimeOfDay)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start time of day")
	}
	endOfDay, err := time.Parse("15:04", req.EndTimeOfDay)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end time of day")
	}
	if !endOfDay.After(startOfDay) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time of day must be after start time of day")
	}

	wanted := make(map[time.Weekday]struct{}, len(req.Weekdays))
	for _, name := range req.Weekdays {
		wanted[weekdayNames[name]] = struct{}{}
	}

	result := &dto.BulkScheduleResult{
		Created: []models.Booking{},
		Skipped: []dto.SkippedOccurrence{},
	}
	endDate := startDate.AddDate(0, req.DurationMonths, 0)

	for date := startDate; !date.After(endDate); date = date.AddDate(0, 0, 1) {
		if _, ok := wanted[date.Weekday()]; !ok {
			continue
		}

		occurrence := dto.CreateBookingRequest{
			RoomNumber:     req.RoomNumber,
			BuildingNumber: req.BuildingNumber,
			BookingDate:    date.Format("2006-01-02"),
			StartTime:      combine(date, startOfDay),
			EndTime:        combine(date, endOfDay),
			Subject:        req.Subject,
			OccupantCount:  req.OccupantCount,
			Notes:          req.Notes,
		}

		booking, err := s.creator.Create(ctx, occurrence, ownerID, ownerName)
		if err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Code == appErrors.ErrBookingConflict.Code {
				result.Skipped = append(result.Skipped, dto.SkippedOccurrence{
					Date:   occurrence.BookingDate,
					Reason: appErr.Message,
				})
				continue
			}
			return nil, err
		}
		result.Created = append(result.Created, *booking)
	}

	result.CreatedCount = len(result.Created)
	result.SkippedCount = len(result.Skipped)
	s.logger.Info("bulk schedule expanded",
		zap.String("room", req.RoomNumber),
		zap.Int("building", req.BuildingNumber),
		zap.Int("created", result.CreatedCount),
		zap.Int("skipped", result.SkippedCount),
	)
	return result, nil
}

// combine anchors a time-of-day on a calendar date in UTC.
func combine(date, timeOfDay time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		timeOfDay.Hour(), timeOfDay.Minute(), 0, 0, time.UTC)
}
