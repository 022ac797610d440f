/*
Copyright © 2013 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package ppgrid

import (
	"context"
	"fmt"
	"sync"

	"github.com/ctessum/requestcache"
)

// GridTag is an opaque, per-process-lifetime identity for a Grid, used
// as a neighbour-cache key. Tags are assigned monotonically on grid
// creation (see Design Notes); equal tags imply identical lat/lon/elev
// arrays. Content hashing is deliberately avoided on this hot path.
type GridTag uint64

var tagCounter struct {
	mu   sync.Mutex
	next GridTag
}

// NextGridTag returns the next process-wide unique grid tag.
func NextGridTag() GridTag {
	tagCounter.mu.Lock()
	defer tagCounter.mu.Unlock()
	tagCounter.next++
	return tagCounter.next
}

// NeighbourCache memoizes bulk nearest-neighbour index maps keyed by
// (sourceGridId, targetGridId). It is process-wide shared state with a
// single-writer-at-setup-time discipline: reads take an RLock, the one
// build-and-publish path takes a full Lock. A requestcache.Cache
// de-duplicates concurrent build requests for the same key pair so
// that even a race at setup time builds the tree at most once
// (spec invariant 5).
type NeighbourCache struct {
	mu    sync.RWMutex
	cache map[GridTag]map[GridTag]*IndexMap

	requests *requestcache.Cache
}

// NewNeighbourCache creates an empty, process-scoped neighbour cache.
// It is injected at driver construction rather than used as a package
// global, so tests can create and discard independent instances.
func NewNeighbourCache() *NeighbourCache {
	nc := &NeighbourCache{
		cache: make(map[GridTag]map[GridTag]*IndexMap),
	}
	nc.requests = requestcache.NewCache(nc.build, 1, requestcache.Deduplicate())
	return nc
}

// build is the requestcache.ProcessFunc that actually constructs an
// index map; it is only ever invoked (once per key, even under a
// concurrent-request race) from GetNearestNeighbour's miss path.
func (nc *NeighbourCache) build(_ context.Context, payload interface{}) (interface{}, error) {
	req := payload.(*neighbourRequest)
	if gridsEqual(req.fromLats, req.toLats) && gridsEqual(req.fromLons, req.toLons) {
		return IdentityIndexMap(req.toLats), nil
	}
	tree := NewVPTree(req.fromLats, req.fromLons)
	return tree.BulkNearest(req.toLats, req.toLons), nil
}

type neighbourRequest struct {
	fromLats, fromLons, toLats, toLons [][]float64
}

// GetNearestNeighbour returns the index map from the source grid to
// the target grid, building and caching it on first request. Repeated
// calls with the same tag pair return the cached result without
// rebuilding (spec invariant 5).
func (nc *NeighbourCache) GetNearestNeighbour(from GriddedFile, to GriddedFile) *IndexMap {
	fromTag, toTag := from.UniqueTag(), to.UniqueTag()

	nc.mu.RLock()
	if m, ok := nc.cache[fromTag]; ok {
		if im, ok := m[toTag]; ok {
			nc.mu.RUnlock()
			return im
		}
	}
	nc.mu.RUnlock()

	key := fmt.Sprintf("%d:%d", fromTag, toTag)
	req := nc.requests.NewRequest(context.Background(), &neighbourRequest{
		fromLats: from.Lats(), fromLons: from.Lons(),
		toLats: to.Lats(), toLons: to.Lons(),
	}, key)
	result, err := req.Result()
	if err != nil {
		// build never returns an error; a panic here would indicate a
		// programming mistake rather than a recoverable condition.
		panic(err)
	}
	im := result.(*IndexMap)

	nc.mu.Lock()
	if nc.cache[fromTag] == nil {
		nc.cache[fromTag] = make(map[GridTag]*IndexMap)
	}
	nc.cache[fromTag][toTag] = im
	nc.mu.Unlock()

	return im
}

// Clear removes all cached index maps. Clearing is an explicit,
// process-wide operation; there is no automatic eviction.
func (nc *NeighbourCache) Clear() {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.cache = make(map[GridTag]map[GridTag]*IndexMap)
}
