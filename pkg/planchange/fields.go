package planchange

// Field folding for Merge: updates targeting an entity created earlier in the
// batch are absorbed into the draft. Field names mirror the json tags of the
// draft structs; unrecognized names are dropped, matching the applier's
// whitelist behavior. Numeric values may arrive as float64 after a trip
// through encoding/json.

func applyPhaseFields(d *PhaseDraft, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				d.Name = s
			}
		case "sequence":
			if n, ok := asInt(v); ok {
				d.Sequence = n
			}
		case "isActive":
			if b, ok := v.(bool); ok {
				d.IsActive = b
			}
		}
	}
}

func applySessionFields(d *SessionDraft, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				d.Name = s
			}
		case "phaseId":
			if s, ok := v.(string); ok {
				d.PhaseID = s
			}
		case "sequence":
			if n, ok := asInt(v); ok {
				d.Sequence = n
			}
		case "durationMinutes":
			if n, ok := asInt(v); ok {
				d.DurationMinutes = n
			}
		}
	}
}

func applyExerciseFields(d *ExerciseDraft, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "sessionId":
			if s, ok := v.(string); ok {
				d.SessionID = s
			}
		case "exerciseId":
			if s, ok := v.(string); ok {
				d.ExerciseID = s
			}
		case "orderMarker":
			if s, ok := v.(string); ok {
				d.OrderMarker = s
			}
		case "targetArea":
			if s, ok := v.(string); ok {
				d.TargetArea = s
			}
		case "targetMotion":
			if s, ok := v.(string); ok {
				d.TargetMotion = s
			}
		case "setRange":
			if s, ok := v.(string); ok {
				d.SetRange = s
			}
		case "repRange":
			if s, ok := v.(string); ok {
				d.RepRange = s
			}
		case "restRange":
			if s, ok := v.(string); ok {
				d.RestRange = s
			}
		case "tempo":
			if s, ok := v.(string); ok {
				d.Tempo = s
			}
		case "customization":
			if s, ok := v.(string); ok {
				d.Customization = s
			}
		case "sets":
			if sets, ok := AsSetDrafts(v); ok {
				d.Sets = sets
			}
		}
	}
}

// AsSetDrafts coerces an update-field value into set drafts. It accepts the
// typed slice (in-process callers) and the []any of maps produced by
// encoding/json.
func AsSetDrafts(v any) ([]SetDraft, bool) {
	switch s := v.(type) {
	case []SetDraft:
		return append([]SetDraft(nil), s...), true
	case []any:
		out := make([]SetDraft, 0, len(s))
		for _, e := range s {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, false
			}
			var d SetDraft
			if id, ok := m["setId"].(string); ok {
				d.SetID = id
			}
			if n, ok := asInt(m["setNumber"]); ok {
				d.SetNumber = n
			}
			if n, ok := asInt(m["reps"]); ok {
				d.Reps = n
			}
			if f, ok := asFloat(m["weight"]); ok {
				d.Weight = f
			}
			if n, ok := asInt(m["restSeconds"]); ok {
				d.RestSeconds = n
			}
			if s2, ok := m["notes"].(string); ok {
				d.Notes = s2
			}
			out = append(out, d)
		}
		return out, true
	}
	return nil, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
