package core

import "time"

// Student is a registered respondent, identified by its connection id.
type Student struct {
	ID          string
	Name        string
	ConnectedAt time.Time
}

// Roster keeps registered students in registration order.
// It is owned by the hub goroutine and is not safe for concurrent use.
type Roster struct {
	order    []string
	students map[string]*Student
}

// NewRoster constructs an empty roster.
func NewRoster() *Roster {
	return &Roster{students: make(map[string]*Student)}
}

// Register adds a student or renames an existing one. A rename keeps the
// original position and ConnectedAt.
func (r *Roster) Register(id, name string, at time.Time) Student {
	if s, ok := r.students[id]; ok {
		s.Name = name
		return *s
	}
	s := &Student{ID: id, Name: name, ConnectedAt: at}
	r.students[id] = s
	r.order = append(r.order, id)
	return *s
}

// Remove deregisters a student. Returns false if id was not registered.
func (r *Roster) Remove(id string) (Student, bool) {
	s, ok := r.students[id]
	if !ok {
		return Student{}, false
	}
	delete(r.students, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *s, true
}

// Get returns the student registered under id.
func (r *Roster) Get(id string) (Student, bool) {
	s, ok := r.students[id]
	if !ok {
		return Student{}, false
	}
	return *s, true
}

// Len returns the number of registered students.
func (r *Roster) Len() int {
	return len(r.order)
}

// Snapshot returns the students in registration order.
func (r *Roster) Snapshot() []Student {
	out := make([]Student, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.students[id])
	}
	return out
}
