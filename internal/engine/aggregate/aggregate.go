// Package aggregate folds participant states into per-site roll-ups.
package aggregate

import (
	"clinops/internal/engine/state"
	"clinops/pkg/domain"
)

// BuildSiteStates groups participants by site and folds each group into a
// Site record. It is a pure function of the current member states: running
// it twice over an unchanged map yields identical values. Always rebuilt
// from scratch, never incrementally patched.
func BuildSiteStates(participants state.Map) map[domain.SiteID]*state.Site {
	grouped := make(map[domain.SiteID][]*state.Participant)
	for _, p := range participants {
		grouped[p.SiteID()] = append(grouped[p.SiteID()], p)
	}

	sites := make(map[domain.SiteID]*state.Site, len(grouped))
	for siteID, members := range grouped {
		sites[siteID] = state.NewSite(siteID, members)
	}
	return sites
}
