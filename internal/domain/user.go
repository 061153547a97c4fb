package domain

// Office is a location holding its own book stock.
type Office struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is a member of exactly one office.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	OfficeID string `json:"office_id"`
	Role     string `json:"role"`
}
