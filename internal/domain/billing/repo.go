package billing

import "context"

// BillRepository reads attach the patient and appointment summaries.
type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id int64) (*Bill, error)
	Update(ctx context.Context, b *Bill) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Bill, error)
}
