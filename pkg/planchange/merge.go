package planchange

// Merge combines two diffs for the same plan, a first, then b on top. Rules:
//   - partitions concatenate, later entries win on id collisions,
//   - an id created in a and deleted in b collapses to a no-op; created
//     children of a collapsed entity (and their pending updates) are dropped
//     with it, since they could never exist on the server,
//   - an update in b targeting an id created earlier folds its fields into
//     the draft instead of appending, keeping each id in a single partition,
//   - an update in b targeting an id deleted earlier is dropped (delete wins),
//   - a delete in b of an already-deleted id is dropped.
//
// Merge never mutates its arguments.
func Merge(a, b Changes) Changes {
	out := Changes{
		Plan: a.Plan,
		Created: CreatedSet{
			Phases:    append([]PhaseDraft(nil), a.Created.Phases...),
			Sessions:  append([]SessionDraft(nil), a.Created.Sessions...),
			Exercises: append([]ExerciseDraft(nil), a.Created.Exercises...),
		},
		Updated: UpdatedSet{
			Phases:    copyUpdates(a.Updated.Phases),
			Sessions:  copyUpdates(a.Updated.Sessions),
			Exercises: copyUpdates(a.Updated.Exercises),
		},
		Deleted: DeletedSet{
			Phases:    append([]string(nil), a.Deleted.Phases...),
			Sessions:  append([]string(nil), a.Deleted.Sessions...),
			Exercises: append([]string(nil), a.Deleted.Exercises...),
		},
	}
	if b.Plan != nil {
		out.Plan = b.Plan
	}

	for _, d := range b.Created.Phases {
		out.Deleted.Phases = removeID(out.Deleted.Phases, d.ID)
		if i := phaseIndex(out.Created.Phases, d.ID); i >= 0 {
			out.Created.Phases[i] = d
		} else {
			out.Created.Phases = append(out.Created.Phases, d)
		}
	}
	for _, d := range b.Created.Sessions {
		out.Deleted.Sessions = removeID(out.Deleted.Sessions, d.ID)
		if i := sessionIndex(out.Created.Sessions, d.ID); i >= 0 {
			out.Created.Sessions[i] = d
		} else {
			out.Created.Sessions = append(out.Created.Sessions, d)
		}
	}
	for _, d := range b.Created.Exercises {
		out.Deleted.Exercises = removeID(out.Deleted.Exercises, d.ID)
		if i := exerciseIndex(out.Created.Exercises, d.ID); i >= 0 {
			out.Created.Exercises[i] = d
		} else {
			out.Created.Exercises = append(out.Created.Exercises, d)
		}
	}

	for _, u := range b.Updated.Phases {
		if containsID(out.Deleted.Phases, u.ID) {
			continue
		}
		if i := phaseIndex(out.Created.Phases, u.ID); i >= 0 {
			applyPhaseFields(&out.Created.Phases[i], u.Fields)
			continue
		}
		out.Updated.Phases = mergeUpdate(out.Updated.Phases, u)
	}
	for _, u := range b.Updated.Sessions {
		if containsID(out.Deleted.Sessions, u.ID) {
			continue
		}
		if i := sessionIndex(out.Created.Sessions, u.ID); i >= 0 {
			applySessionFields(&out.Created.Sessions[i], u.Fields)
			continue
		}
		out.Updated.Sessions = mergeUpdate(out.Updated.Sessions, u)
	}
	for _, u := range b.Updated.Exercises {
		if containsID(out.Deleted.Exercises, u.ID) {
			continue
		}
		if i := exerciseIndex(out.Created.Exercises, u.ID); i >= 0 {
			applyExerciseFields(&out.Created.Exercises[i], u.Fields)
			continue
		}
		out.Updated.Exercises = mergeUpdate(out.Updated.Exercises, u)
	}

	for _, id := range b.Deleted.Exercises {
		if i := exerciseIndex(out.Created.Exercises, id); i >= 0 {
			out.Created.Exercises = append(out.Created.Exercises[:i], out.Created.Exercises[i+1:]...)
			out.Updated.Exercises = dropUpdate(out.Updated.Exercises, id)
			continue
		}
		out.Updated.Exercises = dropUpdate(out.Updated.Exercises, id)
		if !containsID(out.Deleted.Exercises, id) {
			out.Deleted.Exercises = append(out.Deleted.Exercises, id)
		}
	}
	for _, id := range b.Deleted.Sessions {
		if i := sessionIndex(out.Created.Sessions, id); i >= 0 {
			out.Created.Sessions = append(out.Created.Sessions[:i], out.Created.Sessions[i+1:]...)
			out.Updated.Sessions = dropUpdate(out.Updated.Sessions, id)
			out.collapseSessionChildren(id)
			continue
		}
		out.Updated.Sessions = dropUpdate(out.Updated.Sessions, id)
		if !containsID(out.Deleted.Sessions, id) {
			out.Deleted.Sessions = append(out.Deleted.Sessions, id)
		}
	}
	for _, id := range b.Deleted.Phases {
		if i := phaseIndex(out.Created.Phases, id); i >= 0 {
			out.Created.Phases = append(out.Created.Phases[:i], out.Created.Phases[i+1:]...)
			out.Updated.Phases = dropUpdate(out.Updated.Phases, id)
			out.collapsePhaseChildren(id)
			continue
		}
		out.Updated.Phases = dropUpdate(out.Updated.Phases, id)
		if !containsID(out.Deleted.Phases, id) {
			out.Deleted.Phases = append(out.Deleted.Phases, id)
		}
	}

	return out
}

// collapsePhaseChildren drops created sessions under a collapsed phase, and
// their exercises in turn.
func (c *Changes) collapsePhaseChildren(phaseID string) {
	kept := c.Created.Sessions[:0:0]
	for _, s := range c.Created.Sessions {
		if s.PhaseID == phaseID {
			c.Updated.Sessions = dropUpdate(c.Updated.Sessions, s.ID)
			c.collapseSessionChildren(s.ID)
			continue
		}
		kept = append(kept, s)
	}
	c.Created.Sessions = kept
}

func (c *Changes) collapseSessionChildren(sessionID string) {
	kept := c.Created.Exercises[:0:0]
	for _, e := range c.Created.Exercises {
		if e.SessionID == sessionID {
			c.Updated.Exercises = dropUpdate(c.Updated.Exercises, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	c.Created.Exercises = kept
}

func copyUpdates(in []Update) []Update {
	out := make([]Update, 0, len(in))
	for _, u := range in {
		cp := Update{ID: u.ID, Fields: make(map[string]any, len(u.Fields))}
		for k, v := range u.Fields {
			cp.Fields[k] = v
		}
		out = append(out, cp)
	}
	return out
}

// mergeUpdate appends u, or merges its fields into an existing update for
// the same id (later values win per key).
func mergeUpdate(list []Update, u Update) []Update {
	for i := range list {
		if list[i].ID == u.ID {
			for k, v := range u.Fields {
				list[i].Fields[k] = v
			}
			return list
		}
	}
	return append(list, copyUpdates([]Update{u})[0])
}

func dropUpdate(list []Update, id string) []Update {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func phaseIndex(list []PhaseDraft, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func sessionIndex(list []SessionDraft, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func exerciseIndex(list []ExerciseDraft, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func containsID(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(list []string, id string) []string {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
