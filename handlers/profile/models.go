package profile

// UpdateProfileRequest carries the names a persona is created with.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
