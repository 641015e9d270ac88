package core

// Viewer roles. The identity provider is external; we only ever consume
// the {id, role} pair it supplies.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

type Viewer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (v Viewer) IsInstructor() bool {
	return v.Role == RoleInstructor
}

func (v Viewer) IsStudent() bool {
	return v.Role == RoleStudent
}
