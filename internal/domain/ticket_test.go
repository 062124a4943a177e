package domain

import "testing"

func TestStatusTitle(t *testing.T) {
	tests := []struct {
		status TicketStatus
		want   string
	}{
		{TicketStatusTodo, "Todo"},
		{TicketStatusInProgress, "In progress"},
		{TicketStatusDone, "Done"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := tt.status.Title(); got != tt.want {
			t.Errorf("%q.Title() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range BoardStatuses() {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []TicketStatus{"", "TODO", "archived"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestPatchApplyLeavesUnsetFields(t *testing.T) {
	desc := "write the thing"
	assignee := "Ada"
	base := Ticket{
		ID:          "3",
		Title:       "Docs",
		Description: &desc,
		Assignee:    &assignee,
		Status:      TicketStatusTodo,
		Priority:    2,
	}

	got := TicketPatch{ID: "3", Status: Some(TicketStatusInProgress)}.Apply(base)
	if got.Status != TicketStatusInProgress {
		t.Fatalf("status = %q", got.Status)
	}
	if got.Title != "Docs" || got.Description != &desc || got.Assignee != &assignee || got.Priority != 2 {
		t.Fatalf("unset fields changed: %+v", got)
	}

	cleared := TicketPatch{ID: "3", Description: Some[*string](nil)}.Apply(base)
	if cleared.Description != nil {
		t.Fatal("explicit null description should clear the field")
	}
}

func TestPatchOverlay(t *testing.T) {
	local := TicketChanges{Title: "local", Priority: 4}.Patch("9")
	server := TicketPatch{ID: "9", Title: Some("server"), Assignee: Some(StringPtr("Lin"))}

	merged := local.Overlay(server)
	if merged.Title.Value != "server" {
		t.Errorf("title = %q, want server value", merged.Title.Value)
	}
	if !merged.Priority.Set || merged.Priority.Value != 4 {
		t.Errorf("priority lost: %+v", merged.Priority)
	}
	if Deref(merged.Assignee.Value) != "Lin" {
		t.Errorf("assignee = %q", Deref(merged.Assignee.Value))
	}
	if merged.Status.Set {
		t.Error("status must stay unset")
	}
}
