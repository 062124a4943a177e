package domain

// TeamMember is a selectable assignee, projected read-only from the backend.
type TeamMember struct {
	ID   string
	Name string
}

// Identity is the denormalized user stored alongside the session token.
type Identity struct {
	ID    string
	Name  string
	Email string
}
