package model

// CloneProject returns a deep copy of a project. Callers that hand
// aggregates across goroutine boundaries clone first.
func CloneProject(p Project) Project {
	out := p
	out.DueDate = cloneStringPtr(p.DueDate)
	out.Image = cloneStringPtr(p.Image)
	out.Steps = make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		cs := s
		cs.DueDate = cloneStringPtr(s.DueDate)
		cs.Subtasks = append([]Subtask(nil), s.Subtasks...)
		if cs.Subtasks == nil {
			cs.Subtasks = []Subtask{}
		}
		out.Steps[i] = cs
	}
	return out
}

// CloneProjects deep-copies a project sequence.
func CloneProjects(projects []Project) []Project {
	out := make([]Project, len(projects))
	for i, p := range projects {
		out[i] = CloneProject(p)
	}
	return out
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
