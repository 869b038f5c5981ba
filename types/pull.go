// Package types defines core domain types for dockpull.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DefaultImage is the image pulled when none is configured.
const DefaultImage = "rjaat/aibox-prod:latest"

// PullMeta identifies one supervised pull.
// A pull spans every restart of the underlying subprocess.
type PullMeta struct {
	// PullID is the unique identifier for the pull.
	PullID string
	// Image is the image reference handed to docker.
	Image string
}

// NewPullMeta creates pull metadata with a fresh random identifier.
func NewPullMeta(image string) *PullMeta {
	return &PullMeta{
		PullID: uuid.NewString(),
		Image:  image,
	}
}

// Validate checks that the metadata is usable.
func (m *PullMeta) Validate() error {
	if m.PullID == "" {
		return errors.New("pull_id must be non-empty")
	}
	if _, err := uuid.Parse(m.PullID); err != nil {
		return fmt.Errorf("pull_id %q is not a uuid: %w", m.PullID, err)
	}
	if m.Image == "" {
		return errors.New("image must be non-empty")
	}
	return nil
}
