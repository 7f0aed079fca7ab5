package state

import (
	"math"
	"sort"

	"clinops/pkg/domain"
)

// ReadinessTier is the four-level closure-readiness classification of a
// site, a function of its non-conforming participant count alone.
type ReadinessTier string

const (
	TierReady     ReadinessTier = "READY"
	TierNearReady ReadinessTier = "NEAR_READY"
	TierAtRisk    ReadinessTier = "AT_RISK"
	TierNotReady  ReadinessTier = "NOT_READY"
)

// IsValid checks if the tier is one of the supported enum values.
func (t ReadinessTier) IsValid() bool {
	switch t {
	case TierReady, TierNearReady, TierAtRisk, TierNotReady:
		return true
	}
	return false
}

// String returns the string representation.
func (t ReadinessTier) String() string {
	return string(t)
}

// TierFor maps a non-conforming participant count to its readiness tier.
func TierFor(nonConforming int) ReadinessTier {
	switch {
	case nonConforming == 0:
		return TierReady
	case nonConforming == 1:
		return TierNearReady
	case nonConforming <= 3:
		return TierAtRisk
	default:
		return TierNotReady
	}
}

// Site is the derived, read-only roll-up of one site's participants.
// It is rebuilt wholesale after every run, never patched incrementally.
type Site struct {
	siteID       domain.SiteID
	participants []*Participant

	total         int
	conforming    int
	nonConforming int
	meanScore     float64
	minScore      float64
	closureReady  bool
	tier          ReadinessTier
}

// NewSite folds the given participants (all of which must belong to siteID)
// into a site record. The fold is pure: calling it twice over the same
// members yields identical values.
func NewSite(siteID domain.SiteID, participants []*Participant) *Site {
	members := make([]*Participant, len(participants))
	copy(members, participants)
	sort.Slice(members, func(i, j int) bool {
		return members[i].ParticipantID() < members[j].ParticipantID()
	})

	s := &Site{
		siteID:       siteID,
		participants: members,
		meanScore:    100,
		minScore:     100,
		closureReady: true,
		tier:         TierReady,
	}

	s.total = len(members)
	if s.total == 0 {
		return s
	}

	sum := 0.0
	min := members[0].Score()
	for _, p := range members {
		sum += p.Score()
		if p.Score() < min {
			min = p.Score()
		}
		if p.Conforming() {
			s.conforming++
		}
	}

	s.nonConforming = s.total - s.conforming
	s.meanScore = math.Round(sum/float64(s.total)*10) / 10
	s.minScore = min
	s.closureReady = s.nonConforming == 0
	s.tier = TierFor(s.nonConforming)

	return s
}

func (s *Site) SiteID() domain.SiteID   { return s.siteID }
func (s *Site) Total() int              { return s.total }
func (s *Site) ConformingCount() int    { return s.conforming }
func (s *Site) NonConforming() int      { return s.nonConforming }
func (s *Site) MeanScore() float64      { return s.meanScore }
func (s *Site) MinScore() float64       { return s.minScore }
func (s *Site) ClosureReady() bool      { return s.closureReady }
func (s *Site) Tier() ReadinessTier     { return s.tier }
func (s *Site) Participants() []*Participant {
	out := make([]*Participant, len(s.participants))
	copy(out, s.participants)
	return out
}
