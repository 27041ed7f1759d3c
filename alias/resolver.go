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

// Package alias clusters surface forms of actors and roles into canonical
// groups, so "the Trustee", "TRUSTEE" and "trustees" resolve to one id.
//
// Resolution is two-phase: an exact match on the normalized key, then a
// bounded edit-distance comparison against existing cluster representatives
// of the same category. Mutations are staged in a Txn and applied atomically
// at commit, with optimistic conflict detection per category.
package alias

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xrash/smetrics"

	"github.com/corvid-labs/sectra/core"
)

// DefaultMaxDistance is the default edit-distance bound: one edit plus one
// more per four characters of the normalized key.
func DefaultMaxDistance(normLen int) int {
	return 1 + normLen/4
}

// DefaultStopwords are the tokens dropped during normalization.
func DefaultStopwords() map[string]bool {
	return map[string]bool{"the": true, "a": true, "an": true, "of": true}
}

// Resolver holds the alias clusters for every normalizable category.
// It is safe for concurrent use; merges within one category serialize.
type Resolver struct {
	maxDistance func(normLen int) int
	stopwords   map[string]bool
	logger      *slog.Logger

	mu   sync.RWMutex
	cats map[core.EntityCategory]*catState
}

// catState is the live cluster set of one category. version moves on every
// committed mutation and backs the optimistic conflict check.
type catState struct {
	version  uint64
	clusters map[core.ID]*core.AliasCluster
	byNorm   map[string]core.ID
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDistance replaces the edit-distance bound function.
func WithMaxDistance(fn func(normLen int) int) Option {
	return func(r *Resolver) {
		r.maxDistance = fn
	}
}

// WithStopwords replaces the normalization stopword set.
func WithStopwords(words ...string) Option {
	return func(r *Resolver) {
		r.stopwords = make(map[string]bool, len(words))
		for _, w := range words {
			r.stopwords[strings.ToLower(w)] = true
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// NewResolver creates an empty resolver. Use Load to seed it from storage.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		maxDistance: DefaultMaxDistance,
		stopwords:   DefaultStopwords(),
		logger:      slog.Default(),
		cats:        make(map[core.EntityCategory]*catState),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "alias")
	return r
}

// Load seeds the resolver with persisted clusters. Call once at open, before
// any concurrent use.
func (r *Resolver) Load(clusters []*core.AliasCluster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cluster := range clusters {
		st := r.catLocked(cluster.Category)
		c := cloneCluster(cluster)
		st.clusters[c.Id] = c
		for _, m := range c.Members {
			st.byNorm[m.Norm] = c.Id
		}
	}
}

func (r *Resolver) catLocked(cat core.EntityCategory) *catState {
	st := r.cats[cat]
	if st == nil {
		st = &catState{
			clusters: make(map[core.ID]*core.AliasCluster),
			byNorm:   make(map[string]core.ID),
		}
		r.cats[cat] = st
	}
	return st
}

// Lookup resolves a surface form without mutating any cluster. It is meant
// for query-time canonicalization. The second return is false when no
// existing cluster matches.
func (r *Resolver) Lookup(cat core.EntityCategory, surface string) (core.ID, bool) {
	norm := r.normKey(surface)
	if norm == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := r.cats[cat]
	if st == nil {
		return 0, false
	}
	if id, ok := st.byNorm[norm]; ok {
		return id, true
	}
	id := r.nearest(st, norm)
	return id, id != 0
}

// Cluster returns a copy of the cluster with the given id, or nil.
func (r *Resolver) Cluster(id core.ID) *core.AliasCluster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, st := range r.cats {
		if c, ok := st.clusters[id]; ok {
			return cloneCluster(c)
		}
	}
	return nil
}

// Clusters returns copies of all clusters of a category, ordered by label.
func (r *Resolver) Clusters(cat core.EntityCategory) []*core.AliasCluster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := r.cats[cat]
	if st == nil {
		return nil
	}
	out := make([]*core.AliasCluster, 0, len(st.clusters))
	for _, c := range st.clusters {
		out = append(out, cloneCluster(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Id < out[j].Id
	})
	return out
}

func (r *Resolver) normKey(surface string) string {
	norm := NormKey(surface, r.stopwords)
	if norm == "" {
		// Surfaces made entirely of stopwords or punctuation keep their
		// folded form rather than vanishing.
		norm = strings.ToLower(strings.TrimSpace(surface))
	}
	return norm
}

// nearest finds the cluster whose representative is within the edit-distance
// bound of norm. Ties break by distance, then representative key, then id,
// so the choice is independent of map iteration order.
func (r *Resolver) nearest(st *catState, norm string) core.ID {
	var (
		best     core.ID
		bestDist int
		bestRep  string
	)
	limit := r.maxDistance(len(norm))
	for id, c := range st.clusters {
		rep := representativeNorm(c)
		d := smetrics.WagnerFischer(norm, rep, 1, 1, 1)
		if d > limit {
			continue
		}
		if best == 0 || d < bestDist ||
			(d == bestDist && (rep < bestRep || (rep == bestRep && id < best))) {
			best, bestDist, bestRep = id, d, rep
		}
	}
	return best
}

// representativeNorm is the normalized key of the cluster's most frequent
// member, the same member whose surface is promoted to Label.
func representativeNorm(c *core.AliasCluster) string {
	var rep *core.AliasMember
	for i := range c.Members {
		m := &c.Members[i]
		if rep == nil || m.Count > rep.Count ||
			(m.Count == rep.Count && m.Surface < rep.Surface) {
			rep = m
		}
	}
	if rep == nil {
		return ""
	}
	return rep.Norm
}

func cloneCluster(c *core.AliasCluster) *core.AliasCluster {
	out := *c
	out.Members = append([]core.AliasMember(nil), c.Members...)
	return &out
}

// Txn stages alias mutations for one ingestion run. Resolve and Retract
// record intent; nothing touches the live cluster set until Commit.
// A Txn is not safe for concurrent use.
type Txn struct {
	r *Resolver

	versions map[core.EntityCategory]uint64
	// adds is clusterID -> surface -> staged member increment.
	adds map[core.ID]map[string]stagedAdd
	// retracts is clusterID -> surface -> count to remove.
	retracts map[core.ID]map[string]int
	// fresh holds clusters founded in this txn, by id.
	fresh map[core.ID]*core.AliasCluster
	// freshByNorm indexes staged member norms across adds and fresh.
	freshByNorm map[core.EntityCategory]map[string]core.ID
	usage       []core.AliasUsage
}

type stagedAdd struct {
	norm  string
	count int
}

// Begin starts a staged alias transaction.
func (r *Resolver) Begin() *Txn {
	return &Txn{
		r:           r,
		versions:    make(map[core.EntityCategory]uint64),
		adds:        make(map[core.ID]map[string]stagedAdd),
		retracts:    make(map[core.ID]map[string]int),
		fresh:       make(map[core.ID]*core.AliasCluster),
		freshByNorm: make(map[core.EntityCategory]map[string]core.ID),
	}
}

// Resolve maps a surface form to its canonical cluster id, staging the
// membership increment. New surfaces near an existing cluster join it; the
// rest found a new cluster whose id derives from the founding key.
func (t *Txn) Resolve(cat core.EntityCategory, surface string) core.ID {
	norm := t.r.normKey(surface)
	if norm == "" {
		return 0
	}

	t.r.mu.RLock()
	st := t.r.cats[cat]
	var version uint64
	if st != nil {
		version = st.version
	}
	if _, seen := t.versions[cat]; !seen {
		t.versions[cat] = version
	}

	id := t.lookupStaged(cat, norm)
	if id == 0 && st != nil {
		if live, ok := st.byNorm[norm]; ok {
			id = live
		} else {
			id = t.r.nearest(st, norm)
		}
	}
	t.r.mu.RUnlock()

	if id == 0 {
		id = t.nearestFresh(cat, norm)
	}

	if id == 0 {
		id = core.AliasClusterIDFor(cat, norm)
		t.fresh[id] = &core.AliasCluster{
			Id:       id,
			Category: cat,
			Label:    surface,
			Members:  []core.AliasMember{{Surface: surface, Norm: norm, Count: 1}},
		}
	} else if c, ok := t.fresh[id]; ok {
		addMember(c, surface, norm, 1)
	} else {
		byCluster := t.adds[id]
		if byCluster == nil {
			byCluster = make(map[string]stagedAdd)
			t.adds[id] = byCluster
		}
		staged := byCluster[surface]
		staged.norm = norm
		staged.count++
		byCluster[surface] = staged
	}

	byNorm := t.freshByNorm[cat]
	if byNorm == nil {
		byNorm = make(map[string]core.ID)
		t.freshByNorm[cat] = byNorm
	}
	byNorm[norm] = id

	t.usage = append(t.usage, core.AliasUsage{ClusterId: id, Surface: surface, Count: 1})
	return id
}

// Retract stages the removal of a previous source version's usage counts.
func (t *Txn) Retract(usage []core.AliasUsage) {
	for _, u := range usage {
		byCluster := t.retracts[u.ClusterId]
		if byCluster == nil {
			byCluster = make(map[string]int)
			t.retracts[u.ClusterId] = byCluster
		}
		byCluster[u.Surface] += u.Count
	}
}

// Usage returns the staged usage entries, merged per cluster and surface and
// ordered deterministically. Persist it alongside the source.
func (t *Txn) Usage() []core.AliasUsage {
	merged := make(map[core.ID]map[string]int)
	for _, u := range t.usage {
		bySurface := merged[u.ClusterId]
		if bySurface == nil {
			bySurface = make(map[string]int)
			merged[u.ClusterId] = bySurface
		}
		bySurface[u.Surface] += u.Count
	}
	var out []core.AliasUsage
	for id, bySurface := range merged {
		for surface, count := range bySurface {
			out = append(out, core.AliasUsage{ClusterId: id, Surface: surface, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClusterId != out[j].ClusterId {
			return out[i].ClusterId < out[j].ClusterId
		}
		return out[i].Surface < out[j].Surface
	})
	return out
}

func (t *Txn) lookupStaged(cat core.EntityCategory, norm string) core.ID {
	if byNorm := t.freshByNorm[cat]; byNorm != nil {
		return byNorm[norm]
	}
	return 0
}

// nearestFresh applies the edit-distance phase to clusters founded in this
// txn, so near-duplicates within one batch still merge.
func (t *Txn) nearestFresh(cat core.EntityCategory, norm string) core.ID {
	var (
		best     core.ID
		bestDist int
		bestRep  string
	)
	limit := t.r.maxDistance(len(norm))
	for id, c := range t.fresh {
		if c.Category != cat {
			continue
		}
		rep := representativeNorm(c)
		d := smetrics.WagnerFischer(norm, rep, 1, 1, 1)
		if d > limit {
			continue
		}
		if best == 0 || d < bestDist ||
			(d == bestDist && (rep < bestRep || (rep == bestRep && id < best))) {
			best, bestDist, bestRep = id, d, rep
		}
	}
	return best
}

// Commit applies the staged mutations to the live cluster set. The persist
// callback runs while the resolver lock is held, with the updated clusters
// and the ids of clusters left empty; only when it returns nil does the
// in-memory state advance. A category changed by a concurrent commit since
// this txn first read it fails with core.ErrAliasMergeConflict, and the
// caller re-runs its resolution pass.
func (t *Txn) Commit(persist func(dirty []*core.AliasCluster, deleted []core.ID) error) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()

	for cat, seen := range t.versions {
		var current uint64
		if st := t.r.cats[cat]; st != nil {
			current = st.version
		}
		if current != seen {
			return fmt.Errorf("%w: category %s moved from version %d to %d",
				core.ErrAliasMergeConflict, cat, seen, current)
		}
	}

	now := time.Now().UTC()
	updated := make(map[core.ID]*core.AliasCluster)
	var deleted []core.ID

	resolveCluster := func(id core.ID) *core.AliasCluster {
		if c, ok := updated[id]; ok {
			return c
		}
		for _, st := range t.r.cats {
			if c, ok := st.clusters[id]; ok {
				clone := cloneCluster(c)
				updated[id] = clone
				return clone
			}
		}
		return nil
	}

	for id, bySurface := range t.retracts {
		c := resolveCluster(id)
		if c == nil {
			t.r.logger.Warn("retraction for unknown alias cluster", "cluster_id", id)
			continue
		}
		for surface, count := range bySurface {
			addMember(c, surface, "", -count)
		}
	}

	for id, c := range t.fresh {
		if existing := resolveCluster(id); existing != nil {
			// The founding key collided with a cluster another commit
			// created meanwhile; versions caught that above, so this is the
			// same-txn retract-then-found case. Merge the members.
			for _, m := range c.Members {
				addMember(existing, m.Surface, m.Norm, m.Count)
			}
			continue
		}
		clone := cloneCluster(c)
		updated[id] = clone
	}

	for id, bySurface := range t.adds {
		c := resolveCluster(id)
		if c == nil {
			// Cluster vanished between resolve and commit within this txn's
			// own retractions; refound it under the same id.
			c = &core.AliasCluster{Id: id}
			updated[id] = c
		}
		for surface, staged := range bySurface {
			addMember(c, surface, staged.norm, staged.count)
		}
	}

	dirty := make([]*core.AliasCluster, 0, len(updated))
	for id, c := range updated {
		pruneMembers(c)
		if len(c.Members) == 0 {
			deleted = append(deleted, id)
			continue
		}
		c.Label = promoteLabel(c)
		c.UpdatedAt = now
		dirty = append(dirty, c)
	}
	sort.Slice(dirty, func(i, j int) bool { return dirty[i].Id < dirty[j].Id })
	sort.Slice(deleted, func(i, j int) bool { return deleted[i] < deleted[j] })

	if persist != nil {
		if err := persist(dirty, deleted); err != nil {
			return err
		}
	}

	for _, c := range dirty {
		st := t.r.catLocked(c.Category)
		if old, ok := st.clusters[c.Id]; ok {
			for _, m := range old.Members {
				if st.byNorm[m.Norm] == c.Id {
					delete(st.byNorm, m.Norm)
				}
			}
		}
		st.clusters[c.Id] = c
		for _, m := range c.Members {
			st.byNorm[m.Norm] = c.Id
		}
		st.version++
	}
	for _, id := range deleted {
		for _, st := range t.r.cats {
			old, ok := st.clusters[id]
			if !ok {
				continue
			}
			for _, m := range old.Members {
				if st.byNorm[m.Norm] == id {
					delete(st.byNorm, m.Norm)
				}
			}
			delete(st.clusters, id)
			st.version++
			break
		}
	}
	return nil
}

// addMember adjusts the count of one surface form. An unknown surface with a
// positive delta becomes a new member; norm may be empty for retractions of
// members that already exist.
func addMember(c *core.AliasCluster, surface, norm string, delta int) {
	for i := range c.Members {
		if c.Members[i].Surface == surface {
			c.Members[i].Count += delta
			return
		}
	}
	if delta > 0 {
		c.Members = append(c.Members, core.AliasMember{Surface: surface, Norm: norm, Count: delta})
	}
}

func pruneMembers(c *core.AliasCluster) {
	kept := c.Members[:0]
	for _, m := range c.Members {
		if m.Count > 0 {
			kept = append(kept, m)
		}
	}
	c.Members = kept
	sort.Slice(c.Members, func(i, j int) bool {
		return c.Members[i].Surface < c.Members[j].Surface
	})
}

// promoteLabel picks the most frequent member's surface, breaking ties
// lexicographically.
func promoteLabel(c *core.AliasCluster) string {
	var best *core.AliasMember
	for i := range c.Members {
		m := &c.Members[i]
		if best == nil || m.Count > best.Count ||
			(m.Count == best.Count && m.Surface < best.Surface) {
			best = m
		}
	}
	if best == nil {
		return ""
	}
	return best.Surface
}
