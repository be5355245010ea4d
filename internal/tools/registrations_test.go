package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/crewline/onboard-agent/internal/calendar"
	"github.com/crewline/onboard-agent/internal/contacts"
	"github.com/crewline/onboard-agent/internal/email"
)

type fakeCalendar struct {
	events  []calendar.Event
	created []calendar.EventDraft
}

func (f *fakeCalendar) ListEvents(_ context.Context, from, to time.Time) ([]calendar.Event, error) {
	return f.events, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, draft calendar.EventDraft) (calendar.Event, error) {
	f.created = append(f.created, draft)
	return calendar.Event{
		UID:     "evt-1",
		Summary: draft.Summary,
		Start:   draft.Start,
		End:     draft.End,
	}, nil
}

type fakeMail struct {
	sent      []email.SendOptions
	envelopes []email.Envelope
}

func (f *fakeMail) Send(_ context.Context, opts email.SendOptions) error {
	f.sent = append(f.sent, opts)
	return nil
}

func (f *fakeMail) Search(_ context.Context, opts email.SearchOptions) ([]email.Envelope, error) {
	return f.envelopes, nil
}

type fakeContacts struct {
	people []contacts.Person
}

func (f *fakeContacts) Find(query string) []contacts.Person {
	var matches []contacts.Person
	for _, p := range f.people {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			matches = append(matches, p)
		}
	}
	return matches
}

func setupDomainRegistry(t *testing.T) (*Registry, *fakeCalendar, *fakeMail) {
	t.Helper()
	r := NewRegistry(nil)

	cal := &fakeCalendar{}
	mail := &fakeMail{}
	r.SetCalendarService(cal)
	r.SetMailService(mail)
	r.SetContactFinder(&fakeContacts{people: []contacts.Person{
		{Name: "Dana Reyes", Email: "dana.reyes@corp.example", Title: "IT Support Lead"},
	}})

	return r, cal, mail
}

func TestOnboardingToolClassification(t *testing.T) {
	r, _, _ := setupDomainRegistry(t)

	auto := map[string]bool{
		"check_calendar": true,
		"find_contact":   true,
		"search_inbox":   true,
		"book_event":     false,
		"send_email":     false,
	}

	for name, want := range auto {
		tool := r.Get(name)
		if tool == nil {
			t.Errorf("tool %s not registered", name)
			continue
		}
		if tool.AutoExecutable != want {
			t.Errorf("%s AutoExecutable = %v, want %v", name, tool.AutoExecutable, want)
		}
	}
}

func TestCheckCalendarTool(t *testing.T) {
	r, cal, _ := setupDomainRegistry(t)
	ctx := context.Background()

	result, err := r.Execute(ctx, "check_calendar", map[string]any{
		"from": "2026-09-01T09:00:00Z",
		"to":   "2026-09-01T17:00:00Z",
	})
	if err != nil {
		t.Fatalf("check_calendar: %v", err)
	}
	if !strings.Contains(result, "No events") {
		t.Errorf("expected empty-range message, got %q", result)
	}

	cal.events = []calendar.Event{{
		UID:     "evt-9",
		Summary: "IT setup",
		Start:   time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
	}}
	result, err = r.Execute(ctx, "check_calendar", map[string]any{
		"from": "2026-09-01T09:00:00Z",
		"to":   "2026-09-01T17:00:00Z",
	})
	if err != nil {
		t.Fatalf("check_calendar: %v", err)
	}
	if !strings.Contains(result, "IT setup") {
		t.Errorf("expected event in result, got %q", result)
	}

	// Inverted range fails before reaching CalDAV.
	if _, err := r.Execute(ctx, "check_calendar", map[string]any{
		"from": "2026-09-01T17:00:00Z",
		"to":   "2026-09-01T09:00:00Z",
	}); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestBookEventTool(t *testing.T) {
	r, cal, _ := setupDomainRegistry(t)

	result, err := r.Execute(context.Background(), "book_event", map[string]any{
		"summary": "Intro: new hire + manager",
		"start":   "2026-09-02T14:00:00Z",
		"end":     "2026-09-02T14:30:00Z",
	})
	if err != nil {
		t.Fatalf("book_event: %v", err)
	}
	if len(cal.created) != 1 {
		t.Fatalf("expected 1 created event, got %d", len(cal.created))
	}
	if cal.created[0].Summary != "Intro: new hire + manager" {
		t.Errorf("Summary = %q", cal.created[0].Summary)
	}
	if !strings.Contains(result, "Booked") {
		t.Errorf("result = %q", result)
	}
}

func TestSendEmailTool(t *testing.T) {
	r, _, mail := setupDomainRegistry(t)

	_, err := r.Execute(context.Background(), "send_email", map[string]any{
		"to":      "hire@corp.example, buddy@corp.example",
		"subject": "Welcome",
		"body":    "See you **Monday**!",
	})
	if err != nil {
		t.Fatalf("send_email: %v", err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(mail.sent))
	}
	if len(mail.sent[0].To) != 2 {
		t.Errorf("To = %v, want 2 addresses", mail.sent[0].To)
	}
}

func TestSearchInboxTool(t *testing.T) {
	r, _, mail := setupDomainRegistry(t)
	ctx := context.Background()

	mail.envelopes = []email.Envelope{{
		UID:     7,
		From:    "it-helpdesk@corp.example",
		Subject: "Your laptop is ready",
		Date:    time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
	}}

	result, err := r.Execute(ctx, "search_inbox", map[string]any{"query": "laptop"})
	if err != nil {
		t.Fatalf("search_inbox: %v", err)
	}
	if !strings.Contains(result, "Your laptop is ready") {
		t.Errorf("result = %q", result)
	}

	// A completely unconstrained search is refused.
	if _, err := r.Execute(ctx, "search_inbox", map[string]any{}); err == nil {
		t.Error("expected error for empty search")
	}
}

func TestFindContactTool(t *testing.T) {
	r, _, _ := setupDomainRegistry(t)

	result, err := r.Execute(context.Background(), "find_contact", map[string]any{"query": "dana"})
	if err != nil {
		t.Fatalf("find_contact: %v", err)
	}
	if !strings.Contains(result, "dana.reyes@corp.example") {
		t.Errorf("result = %q", result)
	}

	result, err = r.Execute(context.Background(), "find_contact", map[string]any{"query": "nobody"})
	if err != nil {
		t.Fatalf("find_contact: %v", err)
	}
	if !strings.Contains(result, "No directory entries") {
		t.Errorf("result = %q", result)
	}
}
