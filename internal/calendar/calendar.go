// Package calendar provides CalDAV access for the scheduling tools.
//
// The agent reads availability from, and books events into, a single
// CalDAV collection (the onboarding calendar). The service wraps
// emersion/go-webdav's caldav client with lazy connection setup and
// plain Go types at the boundary.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/crewline/onboard-agent/internal/httpkit"
)

// Event is a calendar event in plain Go types.
type Event struct {
	UID      string    `json:"uid"`
	Summary  string    `json:"summary"`
	Location string    `json:"location,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// EventDraft describes an event to be created.
type EventDraft struct {
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
}

// Config holds the CalDAV connection settings.
type Config struct {
	URL      string // collection URL
	Username string
	Password string
	Timezone string // IANA name; empty means UTC
}

// Service is a CalDAV-backed calendar. All public methods are
// goroutine-safe; the underlying client is created lazily on first use.
type Service struct {
	cfg    Config
	logger *slog.Logger
	loc    *time.Location

	mu     sync.Mutex
	client *caldav.Client
}

// NewService creates a calendar service. The timezone is resolved
// eagerly so a bad config fails at startup, not mid-conversation.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
	}
	return &Service{
		cfg:    cfg,
		logger: logger.With("integration", "caldav"),
		loc:    loc,
	}, nil
}

// ensureClient creates the caldav client on first use. Caller must
// hold s.mu.
func (s *Service) ensureClient() (*caldav.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	httpClient := webdav.HTTPClient(httpkit.NewClient())
	if s.cfg.Username != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpkit.NewClient(), s.cfg.Username, s.cfg.Password)
	}

	client, err := caldav.NewClient(httpClient, s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}
	s.client = client
	return client, nil
}

// ListEvents returns events overlapping the [from, to) window, sorted
// by start time.
func (s *Service) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.ensureClient()
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: "VCALENDAR",
			Comps: []caldav.CalendarCompRequest{{
				Name:     "VEVENT",
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, s.cfg.URL, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []Event
	for _, obj := range objects {
		parsed, err := eventsFromCalendar(obj.Data, s.loc)
		if err != nil {
			s.logger.Debug("skipping unparseable calendar object", "path", obj.Path, "error", err)
			continue
		}
		events = append(events, parsed...)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

	s.logger.Debug("listed events", "from", from, "to", to, "count", len(events))
	return events, nil
}

// CreateEvent books a new event in the collection and returns it with
// its assigned UID.
func (s *Service) CreateEvent(ctx context.Context, draft EventDraft) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.ensureClient()
	if err != nil {
		return Event{}, err
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return Event{}, fmt.Errorf("generate uid: %w", err)
	}

	cal := calendarForDraft(draft, uid.String())

	path := fmt.Sprintf("%s%s.ics", collectionPath(s.cfg.URL), uid.String())
	if _, err := client.PutCalendarObject(ctx, path, cal); err != nil {
		return Event{}, fmt.Errorf("put calendar object: %w", err)
	}

	s.logger.Info("event created",
		"uid", uid.String(),
		"summary", draft.Summary,
		"start", draft.Start,
	)

	return Event{
		UID:      uid.String(),
		Summary:  draft.Summary,
		Location: draft.Location,
		Start:    draft.Start,
		End:      draft.End,
	}, nil
}

// calendarForDraft builds a single-event iCalendar document.
func calendarForDraft(draft EventDraft, uid string) *ical.Calendar {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, draft.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, draft.End.UTC())
	event.Props.SetText(ical.PropSummary, draft.Summary)
	if draft.Location != "" {
		event.Props.SetText(ical.PropLocation, draft.Location)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//crewline//onboard-agent//EN")
	cal.Children = append(cal.Children, event.Component)
	return cal
}

// eventsFromCalendar extracts VEVENTs from a parsed iCalendar document.
func eventsFromCalendar(cal *ical.Calendar, loc *time.Location) ([]Event, error) {
	if cal == nil {
		return nil, fmt.Errorf("empty calendar data")
	}

	var events []Event
	for _, icalEvent := range cal.Events() {
		var ev Event

		if prop := icalEvent.Props.Get(ical.PropUID); prop != nil {
			ev.UID = prop.Value
		}
		if prop := icalEvent.Props.Get(ical.PropSummary); prop != nil {
			ev.Summary = prop.Value
		}
		if prop := icalEvent.Props.Get(ical.PropLocation); prop != nil {
			ev.Location = prop.Value
		}

		start, err := icalEvent.DateTimeStart(loc)
		if err != nil {
			return nil, fmt.Errorf("event %s: start: %w", ev.UID, err)
		}
		end, err := icalEvent.DateTimeEnd(loc)
		if err != nil {
			return nil, fmt.Errorf("event %s: end: %w", ev.UID, err)
		}
		ev.Start = start
		ev.End = end

		events = append(events, ev)
	}
	return events, nil
}

// collectionPath normalizes the configured collection URL into a path
// ending with a slash, for building object paths.
func collectionPath(url string) string {
	if url == "" || url[len(url)-1] == '/' {
		return url
	}
	return url + "/"
}
