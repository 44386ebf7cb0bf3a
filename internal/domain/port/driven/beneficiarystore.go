package driven

import (
	"context"

	"github.com/efisher/payadmin/internal/domain/model"
)

// BeneficiaryStore defines the driven port for the non-financial beneficiary
// reference data kept alongside the dashboard. The financial core does not
// read this store; only the operator surface does.
type BeneficiaryStore interface {
	// Upsert stores or replaces the annotation for (environment, backendID).
	Upsert(ctx context.Context, b model.Beneficiary) error

	// Get returns the annotation for (environment, backendID).
	// Returns (nil, nil) when none exists.
	Get(ctx context.Context, env model.Environment, backendID string) (*model.Beneficiary, error)

	// List returns all annotations for the environment, ordered by display name.
	List(ctx context.Context, env model.Environment) ([]model.Beneficiary, error)

	// Delete removes the annotation for (environment, backendID).
	Delete(ctx context.Context, env model.Environment, backendID string) error
}
