package slot

import "sort"

// NewSnapshot creates an empty snapshot for teamID in week w.
func NewSnapshot(teamID string, w Week) *Snapshot {
	return &Snapshot{
		TeamID:    teamID,
		Week:      w,
		Available: make(map[ID]map[string]struct{}),
		Away:      make(map[ID]map[string]struct{}),
	}
}

// MarkAvailable records userID as available in id, clearing any away mark.
func (s *Snapshot) MarkAvailable(id ID, userID string) {
	remove(s.Away, id, userID)
	add(s.Available, id, userID)
}

// MarkAway records userID as away in id, clearing any available mark.
func (s *Snapshot) MarkAway(id ID, userID string) {
	remove(s.Available, id, userID)
	add(s.Away, id, userID)
}

// Clear removes any mark userID has in id.
func (s *Snapshot) Clear(id ID, userID string) {
	remove(s.Available, id, userID)
	remove(s.Away, id, userID)
}

// IsAvailable reports whether userID is marked available in id.
func (s *Snapshot) IsAvailable(id ID, userID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Available[id][userID]
	return ok
}

// IsAway reports whether userID is marked away in id.
func (s *Snapshot) IsAway(id ID, userID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Away[id][userID]
	return ok
}

// AvailableIn returns the sorted ids of players available in id.
func (s *Snapshot) AvailableIn(id ID) []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.Available[id])
}

// AwayIn returns the sorted ids of players marked away in id.
func (s *Snapshot) AwayIn(id ID) []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.Away[id])
}

// Matches reports whether s belongs to teamID and week w.
func (s *Snapshot) Matches(teamID string, w Week) bool {
	return s != nil && s.TeamID == teamID && s.Week == w
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := NewSnapshot(s.TeamID, s.Week)
	c.LoadedAt = s.LoadedAt
	for id, users := range s.Available {
		for u := range users {
			add(c.Available, id, u)
		}
	}
	for id, users := range s.Away {
		for u := range users {
			add(c.Away, id, u)
		}
	}
	return c
}

func add(m map[ID]map[string]struct{}, id ID, userID string) {
	if m[id] == nil {
		m[id] = make(map[string]struct{})
	}
	m[id][userID] = struct{}{}
}

func remove(m map[ID]map[string]struct{}, id ID, userID string) {
	users, ok := m[id]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(m, id)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
