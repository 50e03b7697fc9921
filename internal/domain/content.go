package domain

// Information is one informational post shown on the home page. Its fields
// are owned by the data files and passed through to the views untouched.
type Information map[string]any

// Company is the company profile record.
type Company struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
