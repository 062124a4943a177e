package repository

import (
	"math/rand"
	"strconv"
	"sync"
	"testing"

	"github.com/spec-kit/ticket-board/internal/domain"
)

func ticket(id string, status domain.TicketStatus) domain.Ticket {
	return domain.Ticket{ID: id, Title: "ticket " + id, Status: status, Priority: 1}
}

func ids(tickets []domain.Ticket) []string {
	out := make([]string, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReplaceAll(t *testing.T) {
	s := NewTicketStore()
	s.Insert(ticket("old", domain.TicketStatusTodo))

	s.ReplaceAll([]domain.Ticket{
		ticket("1", domain.TicketStatusTodo),
		ticket("", domain.TicketStatusTodo),
		ticket("2", domain.TicketStatusDone),
		ticket("1", domain.TicketStatusDone),
	})

	if got := ids(s.List()); !equalIDs(got, []string{"1", "2"}) {
		t.Fatalf("ids = %v", got)
	}
	if got, _ := s.Get("1"); got.Status != domain.TicketStatusDone {
		t.Errorf("duplicate id should keep the last value, got %q", got.Status)
	}
	if _, ok := s.Get("old"); ok {
		t.Error("ReplaceAll must discard previous contents")
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	s := NewTicketStore()
	if !s.Insert(ticket("1", domain.TicketStatusTodo)) {
		t.Fatal("first insert should change the store")
	}
	dup := ticket("1", domain.TicketStatusDone)
	if s.Insert(dup) {
		t.Fatal("duplicate insert should be a no-op")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}
	if got, _ := s.Get("1"); got.Status != domain.TicketStatusTodo {
		t.Errorf("duplicate insert overwrote the ticket: %+v", got)
	}
	if s.Insert(domain.Ticket{Title: "no id"}) {
		t.Error("ticket without id must be rejected")
	}
}

func TestMergeUnknownIDIsNoop(t *testing.T) {
	s := NewTicketStore()
	s.Insert(ticket("1", domain.TicketStatusTodo))
	before := s.List()

	if s.Merge(domain.TicketPatch{ID: "404", Status: domain.Some(domain.TicketStatusDone)}) {
		t.Fatal("merge on unknown id reported a change")
	}
	after := s.List()
	if len(after) != len(before) || after[0] != before[0] {
		t.Fatalf("store changed: %+v -> %+v", before, after)
	}
}

func TestRemovedTicketIsNotResurrected(t *testing.T) {
	s := NewTicketStore()
	s.Insert(ticket("1", domain.TicketStatusTodo))
	s.Insert(ticket("2", domain.TicketStatusTodo))

	if !s.Remove("2") {
		t.Fatal("remove should change the store")
	}
	for i := 0; i < 3; i++ {
		s.Merge(domain.TicketPatch{ID: "2", Title: domain.Some("stale")})
	}
	if _, ok := s.Get("2"); ok {
		t.Fatal("stale merge resurrected a removed ticket")
	}
	if s.Remove("2") {
		t.Error("second remove should be a no-op")
	}

	s.Insert(ticket("2", domain.TicketStatusDone))
	if got, ok := s.Get("2"); !ok || got.Status != domain.TicketStatusDone {
		t.Error("insert after remove should bring the ticket back")
	}
	if got := ids(s.List()); !equalIDs(got, []string{"1", "2"}) {
		t.Errorf("ids = %v", got)
	}
}

func TestUnknownStatusIsKept(t *testing.T) {
	s := NewTicketStore()
	s.Insert(ticket("1", "archived"))
	if _, ok := s.Get("1"); !ok {
		t.Fatal("tickets with unknown status stay in the store")
	}
}

func TestRandomSequencesKeepIDsUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := domain.BoardStatuses()

	for run := 0; run < 200; run++ {
		s := NewTicketStore()
		model := map[string]bool{}
		for step := 0; step < 60; step++ {
			id := strconv.Itoa(rng.Intn(8))
			switch rng.Intn(3) {
			case 0:
				s.Insert(ticket(id, statuses[rng.Intn(len(statuses))]))
				model[id] = true
			case 1:
				s.Merge(domain.TicketPatch{ID: id, Priority: domain.Some(rng.Intn(5) + 1)})
			case 2:
				s.Remove(id)
				delete(model, id)
			}

			seen := map[string]bool{}
			for _, tk := range s.List() {
				if seen[tk.ID] {
					t.Fatalf("run %d step %d: duplicate id %s", run, step, tk.ID)
				}
				seen[tk.ID] = true
			}
			if len(seen) != len(model) {
				t.Fatalf("run %d step %d: store has %d ids, model %d", run, step, len(seen), len(model))
			}
			for id := range model {
				if !seen[id] {
					t.Fatalf("run %d step %d: %s missing", run, step, id)
				}
			}
		}
	}
}

func TestListenersFireOnEffectiveMutations(t *testing.T) {
	s := NewTicketStore()
	calls := 0
	s.Subscribe(func() {
		calls++
		_ = s.Len() // listeners may read the store
	})

	s.Insert(ticket("1", domain.TicketStatusTodo))
	s.Insert(ticket("1", domain.TicketStatusTodo))
	s.Merge(domain.TicketPatch{ID: "1", Title: domain.Some("x")})
	s.Merge(domain.TicketPatch{ID: "9", Title: domain.Some("x")})
	s.Remove("9")
	s.Remove("1")
	s.ReplaceAll(nil)

	if calls != 4 {
		t.Errorf("listener calls = %d, want 4", calls)
	}
}

func TestConcurrentMutations(t *testing.T) {
	s := NewTicketStore()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := strconv.Itoa(i % 10)
				s.Insert(ticket(id, domain.TicketStatusTodo))
				s.Merge(domain.TicketPatch{ID: id, Priority: domain.Some(w + 1)})
				if i%7 == 0 {
					s.Remove(id)
				}
				_ = s.List()
			}
		}(w)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, tk := range s.List() {
		if seen[tk.ID] {
			t.Fatalf("duplicate id %s", tk.ID)
		}
		seen[tk.ID] = true
	}
}

func TestTeamRoster(t *testing.T) {
	r := NewTeamRoster()
	members := []domain.TeamMember{{ID: "1", Name: "Ada"}, {ID: "2", Name: "Lin"}}
	r.Replace(members)
	members[0].Name = "mutated"

	if name, ok := r.Name("1"); !ok || name != "Ada" {
		t.Errorf("Name(1) = %q %v", name, ok)
	}
	if _, ok := r.Name("3"); ok {
		t.Error("unknown id should not resolve")
	}
	if len(r.List()) != 2 {
		t.Errorf("list len = %d", len(r.List()))
	}
}
