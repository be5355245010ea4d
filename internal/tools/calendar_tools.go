package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crewline/onboard-agent/internal/calendar"
)

// CalendarService is the calendar surface the scheduling tools need.
type CalendarService interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, draft calendar.EventDraft) (calendar.Event, error)
}

// SetCalendarService adds the check_calendar and book_event tools to
// the registry.
func (r *Registry) SetCalendarService(svc CalendarService) {
	r.calendar = svc
	r.registerCalendarTools()
}

func (r *Registry) registerCalendarTools() {
	if r.calendar == nil {
		return
	}

	r.Register(&Tool{
		Name: "check_calendar",
		Description: "List events on the onboarding calendar in a date range. " +
			"Use this to check availability before proposing meeting times. " +
			"Dates are RFC 3339 timestamps, e.g. 2026-09-01T09:00:00Z.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from": map[string]any{
					"type":        "string",
					"description": "Start of the range (RFC 3339 timestamp)",
				},
				"to": map[string]any{
					"type":        "string",
					"description": "End of the range (RFC 3339 timestamp)",
				},
			},
			"required": []string{"from", "to"},
		},
		AutoExecutable: true,
		Handler:        r.handleCheckCalendar,
	})

	r.Register(&Tool{
		Name: "book_event",
		Description: "Book an event on the onboarding calendar, such as an intro " +
			"meeting or an equipment pickup slot. Booking creates a real calendar " +
			"entry visible to attendees, so always confirm the details first.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": "Event title, e.g. 'Intro: new hire + engineering manager'",
				},
				"location": map[string]any{
					"type":        "string",
					"description": "Meeting room or video link",
				},
				"start": map[string]any{
					"type":        "string",
					"description": "Event start (RFC 3339 timestamp)",
				},
				"end": map[string]any{
					"type":        "string",
					"description": "Event end (RFC 3339 timestamp)",
				},
			},
			"required": []string{"summary", "start", "end"},
		},
		Handler: r.handleBookEvent,
	})
}

func (r *Registry) handleCheckCalendar(ctx context.Context, args map[string]any) (string, error) {
	from, err := parseTimeArg(args, "from")
	if err != nil {
		return "", err
	}
	to, err := parseTimeArg(args, "to")
	if err != nil {
		return "", err
	}
	if !to.After(from) {
		return "", fmt.Errorf("'to' must be after 'from'")
	}

	events, err := r.calendar.ListEvents(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}

	if len(events) == 0 {
		return fmt.Sprintf("No events between %s and %s.",
			from.Format(time.RFC3339), to.Format(time.RFC3339)), nil
	}

	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}

func (r *Registry) handleBookEvent(ctx context.Context, args map[string]any) (string, error) {
	summary, _ := args["summary"].(string)
	if summary == "" {
		return "", fmt.Errorf("summary is required")
	}
	location, _ := args["location"].(string)

	start, err := parseTimeArg(args, "start")
	if err != nil {
		return "", err
	}
	end, err := parseTimeArg(args, "end")
	if err != nil {
		return "", err
	}
	if !end.After(start) {
		return "", fmt.Errorf("'end' must be after 'start'")
	}

	event, err := r.calendar.CreateEvent(ctx, calendar.EventDraft{
		Summary:  summary,
		Location: location,
		Start:    start,
		End:      end,
	})
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}

	return fmt.Sprintf("Booked %q from %s to %s (uid %s).",
		event.Summary,
		event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339),
		event.UID), nil
}

// parseTimeArg reads an RFC 3339 timestamp from the args map.
func parseTimeArg(args map[string]any, key string) (time.Time, error) {
	raw, _ := args[key].(string)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp: %w", key, err)
	}
	return t, nil
}
