package planchange

import "fmt"

// Validate checks the structural rules of a diff:
//   - every draft, update and deletion carries a non-empty id,
//   - no id appears more than once across all partitions,
//   - session and exercise drafts carry their parent references,
//   - exercise drafts reference a library exercise.
//
// Errors wrap ErrInvalidChanges.
func (c Changes) Validate() error {
	seen := make(map[string]string) // id -> partition it first appeared in

	claim := func(id, partition string) error {
		if id == "" {
			return fmt.Errorf("%w: %s entry with empty id", ErrInvalidChanges, partition)
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("%w: id %q appears in both %s and %s", ErrInvalidChanges, id, prev, partition)
		}
		seen[id] = partition
		return nil
	}

	for _, d := range c.Created.Phases {
		if err := claim(d.ID, "created.phases"); err != nil {
			return err
		}
	}
	for _, d := range c.Created.Sessions {
		if err := claim(d.ID, "created.sessions"); err != nil {
			return err
		}
		if d.PhaseID == "" {
			return fmt.Errorf("%w: session draft %q missing phaseId", ErrInvalidChanges, d.ID)
		}
	}
	for _, d := range c.Created.Exercises {
		if err := claim(d.ID, "created.exercises"); err != nil {
			return err
		}
		if d.SessionID == "" {
			return fmt.Errorf("%w: exercise draft %q missing sessionId", ErrInvalidChanges, d.ID)
		}
		if d.ExerciseID == "" {
			return fmt.Errorf("%w: exercise draft %q missing exerciseId", ErrInvalidChanges, d.ID)
		}
	}

	for _, u := range c.Updated.Phases {
		if err := claim(u.ID, "updated.phases"); err != nil {
			return err
		}
	}
	for _, u := range c.Updated.Sessions {
		if err := claim(u.ID, "updated.sessions"); err != nil {
			return err
		}
	}
	for _, u := range c.Updated.Exercises {
		if err := claim(u.ID, "updated.exercises"); err != nil {
			return err
		}
	}

	for _, id := range c.Deleted.Phases {
		if err := claim(id, "deleted.phases"); err != nil {
			return err
		}
	}
	for _, id := range c.Deleted.Sessions {
		if err := claim(id, "deleted.sessions"); err != nil {
			return err
		}
	}
	for _, id := range c.Deleted.Exercises {
		if err := claim(id, "deleted.exercises"); err != nil {
			return err
		}
	}

	return nil
}
