package domain

// SupervisorID is the reserved participant id standing in for the group's
// supervisor when they join a round as a pairing partner. Real participant ids
// are always positive.
const SupervisorID int64 = 0

type Participant struct {
	ID         int64         `json:"id"`
	GroupToken string        `json:"group_token"`
	Name       string        `json:"name"`
	JoinOrder  int64         `json:"join_order"`
	RoundCount int           `json:"round_count"`
	LedCounts  map[int64]int `json:"led_counts,omitempty"`
	JoinedAt   string        `json:"joined_at" format:"date-time"`
}

type Group struct {
	Token                  string        `json:"token"`
	SupervisorID           string        `json:"supervisor_id"`
	SupervisorParticipates bool          `json:"supervisor_participates"`
	Participants           []Participant `json:"participants"`
	Rotation               []int64       `json:"rotation,omitempty"`
	RoundCounter           int           `json:"round_counter"`
	NextJoinOrder          int64         `json:"-"`
	CreatedAt              string        `json:"created_at" format:"date-time"`
	EndedAt                *string       `json:"ended_at,omitempty" format:"date-time"`
}

// Closed reports whether the group has been ended by its supervisor.
func (g Group) Closed() bool {
	return g.EndedAt != nil
}

// Participant returns the member with the given id.
func (g Group) Participant(id int64) (Participant, bool) {
	for _, p := range g.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

type RoundResult struct {
	RoundNumber      int        `json:"roundNumber"`
	Pairs            [][2]int64 `json:"pairs"`
	SittingOut       *int64     `json:"sittingOut"`
	SupervisorPaired bool       `json:"supervisorPaired"`
	Content          []string   `json:"content,omitempty"`
	CreatedAt        string     `json:"createdAt,omitempty" format:"date-time"`
}

// GroupState is the persisted-state record of a group; a group can be rebuilt
// from it alone.
type GroupState struct {
	Token        string             `json:"token"`
	Participants []ParticipantState `json:"participants"`
	Rotation     []int64            `json:"rotation"`
	RoundCounter int                `json:"roundCounter"`
	History      []RoundResult      `json:"history"`
}

type ParticipantState struct {
	ID         int64         `json:"id"`
	JoinOrder  int64         `json:"joinOrder"`
	RoundCount int           `json:"roundCount"`
	LedCounts  map[int64]int `json:"ledCounts"`
}

type ContentItem struct {
	ID   int64    `json:"id"`
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

// HasTag reports whether the item carries tag.
func (c ContentItem) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type TokenStats struct {
	Total  int    `json:"total"`
	Cursor int    `json:"cursor"`
	Next   string `json:"next,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	GroupToken string `json:"group_token,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
