package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crewline/onboard-agent/internal/contacts"
)

// ContactFinder is the directory surface the find_contact tool needs.
type ContactFinder interface {
	Find(query string) []contacts.Person
}

// SetContactFinder adds the find_contact tool to the registry.
func (r *Registry) SetContactFinder(finder ContactFinder) {
	r.contacts = finder
	r.registerContactTools()
}

func (r *Registry) registerContactTools() {
	if r.contacts == nil {
		return
	}

	r.Register(&Tool{
		Name: "find_contact",
		Description: "Look up a person in the company directory by name, role, " +
			"team, or email. Returns name, email, title, and organization for " +
			"each match. Use this to find whose calendar to book or who to email.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Name, role, team, or email fragment to search for",
				},
			},
			"required": []string{"query"},
		},
		AutoExecutable: true,
		Handler:        r.handleFindContact,
	})
}

func (r *Registry) handleFindContact(_ context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	matches := r.contacts.Find(query)
	if len(matches) == 0 {
		return fmt.Sprintf("No directory entries match %q.", query), nil
	}

	data, err := json.Marshal(matches)
	if err != nil {
		return "", fmt.Errorf("marshal contacts: %w", err)
	}
	return string(data), nil
}
