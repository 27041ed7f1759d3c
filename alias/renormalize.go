// Copyright 2026 Corvid Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package alias

import (
	"sort"

	"github.com/corvid-labs/sectra/core"
)

// Renormalize rebuilds the entire cluster set from its member surface forms
// under the resolver's current normalization and distance settings. Clusters
// formed under different settings may merge, split, or change id; this is the
// one operation allowed to reassign canonical ids, so the caller must
// re-resolve stored entities and persist the returned set afterwards.
//
// Returns the rebuilt clusters ordered by id and the ids of clusters that no
// longer exist. Category versions advance, so in-flight transactions begun
// before the rebuild fail their commit with core.ErrAliasMergeConflict.
func (r *Resolver) Renormalize() ([]*core.AliasCluster, []core.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldIDs := make(map[core.ID]bool)
	cats := make([]core.EntityCategory, 0, len(r.cats))
	for cat, st := range r.cats {
		cats = append(cats, cat)
		for id := range st.clusters {
			oldIDs[id] = true
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	// Replay every member occurrence through a private resolver, so the
	// rebuild runs the exact staged-resolution path ingestion uses.
	fresh := &Resolver{
		maxDistance: r.maxDistance,
		stopwords:   r.stopwords,
		logger:      r.logger,
		cats:        make(map[core.EntityCategory]*catState),
	}
	txn := fresh.Begin()
	for _, cat := range cats {
		for _, c := range sortedClusters(r.cats[cat]) {
			for _, m := range c.Members {
				for i := 0; i < m.Count; i++ {
					txn.Resolve(cat, m.Surface)
				}
			}
		}
	}
	// fresh is private to this call; its commit cannot conflict.
	if err := txn.Commit(nil); err != nil {
		r.logger.Error("alias renormalization commit failed", "err", err)
		return nil, nil
	}

	var (
		clusters []*core.AliasCluster
		removed  []core.ID
	)
	present := make(map[core.ID]bool)
	for cat, st := range fresh.cats {
		if old := r.cats[cat]; old != nil {
			st.version = old.version + 1
		} else {
			st.version = 1
		}
		for _, c := range st.clusters {
			clusters = append(clusters, cloneCluster(c))
			present[c.Id] = true
		}
	}
	// Categories whose clusters all vanished keep an empty state so their
	// version still moves.
	for cat, old := range r.cats {
		if fresh.cats[cat] == nil {
			fresh.cats[cat] = &catState{
				version:  old.version + 1,
				clusters: make(map[core.ID]*core.AliasCluster),
				byNorm:   make(map[string]core.ID),
			}
		}
	}
	r.cats = fresh.cats

	for id := range oldIDs {
		if !present[id] {
			removed = append(removed, id)
		}
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Id < clusters[j].Id })
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

	r.logger.Info("alias clusters renormalized",
		"clusters", len(clusters), "removed", len(removed))
	return clusters, removed
}

// sortedClusters returns a category's clusters ordered by id, members ordered
// by surface, so the replay is independent of map iteration order.
func sortedClusters(st *catState) []*core.AliasCluster {
	if st == nil {
		return nil
	}
	out := make([]*core.AliasCluster, 0, len(st.clusters))
	for _, c := range st.clusters {
		clone := cloneCluster(c)
		sort.Slice(clone.Members, func(i, j int) bool {
			return clone.Members[i].Surface < clone.Members[j].Surface
		})
		out = append(out, clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}
