package identity

import "context"

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	// GetByID and List attach the patient's appointment summaries.
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Patient, error)
}

// PractitionerFilter narrows List. An empty Specialty matches all.
type PractitionerFilter struct {
	Specialty string
	SortBy    string
}

type PractitionerRepository interface {
	Create(ctx context.Context, p *Practitioner) error
	GetByID(ctx context.Context, id int64) (*Practitioner, error)
	Update(ctx context.Context, p *Practitioner) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f PractitionerFilter) ([]*Practitioner, error)
}

// practitionerOrder maps sortBy values onto ORDER BY clauses. Unknown values
// fall back to last name.
func practitionerOrder(sortBy string) string {
	switch sortBy {
	case "firstName":
		return "first_name ASC, id ASC"
	case "specialty":
		return "specialty ASC, id ASC"
	case "experience":
		return "experience DESC, id ASC"
	}
	return "last_name ASC, id ASC"
}
