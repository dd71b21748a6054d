package report

import (
	"encoding/json"
	"time"
)

// All date conversion between the in-memory aggregate (time.Time) and the
// persisted draft (ISO-8601 strings) happens here, at the save/load
// boundary, and nowhere else.

const (
	keyPersonInvolved = "personInvolved"
	keyDOB            = "dob"
	keyLastSeen       = "lastSeenDate"
	keyLastStep       = "lastStep"
)

// serialize produces the wholesale draft document: aggregate with time.Time
// values converted to ISO strings, non-serializable values stripped, and the
// current step stamped as lastStep.
func serialize(data map[string]any, lastStep int) ([]byte, error) {
	clean, _ := sanitize(data)
	doc, ok := clean.(map[string]any)
	if !ok {
		doc = map[string]any{}
	}
	doc[keyLastStep] = lastStep
	return json.Marshal(doc)
}

// sanitize deep-copies v for persistence. time.Time becomes an ISO string;
// values encoding/json cannot represent (event objects, funcs, channels
// accidentally merged into form state) are dropped. The second return is
// false when the value itself must be dropped.
func sanitize(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case time.Time:
		return t.UTC().Format(time.RFC3339), true
	case *time.Time:
		if t == nil {
			return nil, true
		}
		return t.UTC().Format(time.RFC3339), true
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if clean, ok := sanitize(val); ok {
				out[k] = clean
			}
		}
		return out, true
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			if clean, ok := sanitize(val); ok {
				out = append(out, clean)
			}
		}
		return out, true
	default:
		if _, err := json.Marshal(t); err != nil {
			return nil, false
		}
		return t, true
	}
}

// rehydrate parses a persisted draft document back into the in-memory
// aggregate: ISO date strings become time.Time values again, and lastStep is
// extracted. A missing or unparseable date defaults to now, mirroring the
// form's behavior of starting date pickers at the current moment.
func rehydrate(raw []byte, now func() time.Time) (map[string]any, int, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, err
	}

	lastStep := 1
	if v, ok := doc[keyLastStep].(float64); ok && int(v) >= 1 && int(v) <= TotalSteps {
		lastStep = int(v)
	}
	delete(doc, keyLastStep)

	if person, ok := doc[keyPersonInvolved].(map[string]any); ok {
		person[keyDOB] = parseDate(person[keyDOB], now)
		person[keyLastSeen] = parseDate(person[keyLastSeen], now)
	}

	return doc, lastStep, nil
}

func parseDate(v any, now func() time.Time) time.Time {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return now()
}
