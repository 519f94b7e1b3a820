package domain

// TaskReferrers lists who points at taskID: dependent task ids, milestone
// ids and cost record ids.
type TaskReferrers struct {
	Tasks      []string
	Milestones []string
	Costs      []string
}

func (r TaskReferrers) Empty() bool {
	return len(r.Tasks) == 0 && len(r.Milestones) == 0
}

// ReferencesToTask finds records that reference taskID. Cost records are
// reported but do not count towards Empty since they are history.
func ReferencesToTask(p Project, taskID string) TaskReferrers {
	var out TaskReferrers
	for _, t := range p.Tasks {
		if contains(t.Dependencies, taskID) {
			out.Tasks = append(out.Tasks, t.ID)
		}
	}
	for _, m := range p.Milestones {
		if contains(m.TaskIDs, taskID) {
			out.Milestones = append(out.Milestones, m.ID)
		}
	}
	for _, c := range p.Costs {
		if c.TaskID == taskID {
			out.Costs = append(out.Costs, c.ID)
		}
	}
	return out
}

// ResourceReferrers lists tasks assigning and teams containing a resource.
type ResourceReferrers struct {
	Tasks []string
	Teams []string
}

func (r ResourceReferrers) Empty() bool {
	return len(r.Tasks) == 0 && len(r.Teams) == 0
}

func ReferencesToResource(p Project, resourceID string) ResourceReferrers {
	var out ResourceReferrers
	for _, t := range p.Tasks {
		if contains(t.AssignedTo, resourceID) {
			out.Tasks = append(out.Tasks, t.ID)
		}
	}
	for _, tm := range p.Teams {
		if contains(tm.Members, resourceID) {
			out.Teams = append(out.Teams, tm.ID)
		}
	}
	return out
}

// WithoutTaskRef returns t with id removed from its dependencies.
func (t Task) WithoutTaskRef(id string) Task {
	t = t.Clone()
	t.Dependencies = remove(t.Dependencies, id)
	return t
}

// WithoutResourceRef returns t with id removed from its assignees.
func (t Task) WithoutResourceRef(id string) Task {
	t = t.Clone()
	t.AssignedTo = remove(t.AssignedTo, id)
	return t
}

func (m Milestone) WithoutTaskRef(id string) Milestone {
	m = m.Clone()
	m.TaskIDs = remove(m.TaskIDs, id)
	return m
}

func (t Team) WithoutMember(id string) Team {
	t = t.Clone()
	t.Members = remove(t.Members, id)
	return t
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func remove(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
