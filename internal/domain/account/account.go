package account

// Role is the portal a user signs in to.
type Role string

const (
	RoleStudent   Role = "student"
	RoleTeacher   Role = "teacher"
	RolePrincipal Role = "principal"
	RoleGuest     Role = "guest"
)

// User is the profile returned by the backend on login or registration.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role,omitempty"`
}

// Credentials identify an existing account.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration describes a new account.
type Registration struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     Role   `json:"role" validate:"required,oneof=student teacher principal guest"`
}

// Grant is an issued access token and its owner.
type Grant struct {
	AccessToken string
	User        User
}
