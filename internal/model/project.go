package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Subtask is a single checkable entry within a Step. Its lifecycle is
// bound to the parent Step.
type Subtask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Step is a unit of work within a Project. Its effective status is always
// computed; Completed is the only stored status input, an explicit override
// that forces the step to read as done regardless of its subtasks.
type Step struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     *string   `json:"dueDate"`
	Completed   bool      `json:"completed"`
	Subtasks    []Subtask `json:"subtasks"`
}

// Project is the aggregate root: the unit of load and save. CreatedAt is
// set once at creation and never changes afterwards.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	DueDate     *string   `json:"dueDate"`
	Image       *string   `json:"image"`
	Steps       []Step    `json:"steps"`
}

// FindStep returns the step with the given id, or nil.
func (p *Project) FindStep(id string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// RemoveStep removes the step with the given id and reports whether it
// was present.
func (p *Project) RemoveStep(id string) bool {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			p.Steps = append(p.Steps[:i], p.Steps[i+1:]...)
			return true
		}
	}
	return false
}

// FindSubtask returns the subtask with the given id, or nil.
func (s *Step) FindSubtask(id string) *Subtask {
	for i := range s.Subtasks {
		if s.Subtasks[i].ID == id {
			return &s.Subtasks[i]
		}
	}
	return nil
}

// RemoveSubtask removes the subtask with the given id and reports whether
// it was present.
func (s *Step) RemoveSubtask(id string) bool {
	for i := range s.Subtasks {
		if s.Subtasks[i].ID == id {
			s.Subtasks = append(s.Subtasks[:i], s.Subtasks[i+1:]...)
			return true
		}
	}
	return false
}

// Persisted records predate the canonical schema and mix types freely:
// numeric ids next to string ids, 0/1 done flags, full ISO timestamps in
// date-only fields. The UnmarshalJSON implementations below coerce
// field-by-field instead of rejecting, so no record is ever dropped for
// being incomplete. Unknown fields are dropped.

// UnmarshalJSON decodes a subtask, coercing loosely-typed legacy fields.
func (s *Subtask) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    json.RawMessage `json:"id"`
		Title json.RawMessage `json:"title"`
		Done  json.RawMessage `json:"done"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.ID = coerceID(raw.ID)
	s.Title = coerceString(raw.Title)
	s.Done = coerceBool(raw.Done)
	return nil
}

// UnmarshalJSON decodes a step, coercing loosely-typed legacy fields.
// DueDate is kept verbatim here; normalization to date-only happens in
// the aggregate store's migration.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		Title       json.RawMessage `json:"title"`
		Description json.RawMessage `json:"description"`
		DueDate     json.RawMessage `json:"dueDate"`
		Completed   json.RawMessage `json:"completed"`
		Subtasks    []Subtask       `json:"subtasks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.ID = coerceID(raw.ID)
	s.Title = coerceString(raw.Title)
	s.Description = coerceString(raw.Description)
	s.DueDate = coerceStringPtr(raw.DueDate)
	s.Completed = coerceBool(raw.Completed)
	s.Subtasks = raw.Subtasks
	return nil
}

// UnmarshalJSON decodes a project, coercing loosely-typed legacy fields.
func (p *Project) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		Title       json.RawMessage `json:"title"`
		Description json.RawMessage `json:"description"`
		CreatedAt   json.RawMessage `json:"createdAt"`
		DueDate     json.RawMessage `json:"dueDate"`
		Image       json.RawMessage `json:"image"`
		Steps       []Step          `json:"steps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ID = coerceID(raw.ID)
	p.Title = coerceString(raw.Title)
	p.Description = coerceString(raw.Description)
	p.CreatedAt = coerceTime(raw.CreatedAt)
	p.DueDate = coerceStringPtr(raw.DueDate)
	p.Image = coerceStringPtr(raw.Image)
	p.Steps = raw.Steps
	return nil
}

func coerceString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func coerceStringPtr(raw json.RawMessage) *string {
	var s *string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return nil
}

// coerceID accepts string ids as-is and stringifies numeric ids from the
// older integer-keyed schema.
func coerceID(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func coerceBool(raw json.RawMessage) bool {
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	var n float64
	if json.Unmarshal(raw, &n) == nil {
		return n != 0
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.EqualFold(s, "true") || s == "1"
	}
	return false
}

func coerceTime(raw json.RawMessage) time.Time {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
