// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"sort"

	"github.com/gopack200/unpack200/internal/bitio"
)

// PopulationResult is the decoded output of a population codec (spec
// §4.1 "Population codec"): the merged value sequence in original
// position order, plus the sorted favored-value table used to classify
// membership (spec §8 property 2).
type PopulationResult struct {
	Values        []int64
	SortedFavored []int64
}

// Classify reports whether d belongs to the favored set, by binary
// search against the sorted favored table (spec §8 property 2).
func (p *PopulationResult) Classify(d int64) bool {
	i := sort.Search(len(p.SortedFavored), func(i int) bool { return p.SortedFavored[i] >= d })
	return i < len(p.SortedFavored) && p.SortedFavored[i] == d
}

// decodePopulation decodes count values using the three-sub-codec scheme
// of spec §4.1: a per-element favored? token (0 = unfavored, nonzero =
// favored), then the favored-values band supplying one value per favored
// position in order, then the unfavored band supplying one value per
// remaining position in order. Values are merged back into original
// position order.
func decodePopulation(r *bitio.Reader, bh *bandHeaders, tokenCodec, favoredCodec, unfavoredCodec *Codec, count int) (*PopulationResult, error) {
	tokens, err := decodeWithMeta(r, bh, tokenCodec, count)
	if err != nil {
		return nil, newErr(KindBadCodec, "population-token", r.Pos(), err)
	}

	nFavored := 0
	for _, t := range tokens {
		if t != 0 {
			nFavored++
		}
	}
	nUnfavored := count - nFavored

	favored, err := decodeWithMeta(r, bh, favoredCodec, nFavored)
	if err != nil {
		return nil, newErr(KindBadCodec, "population-favored", r.Pos(), err)
	}
	unfavored, err := decodeWithMeta(r, bh, unfavoredCodec, nUnfavored)
	if err != nil {
		return nil, newErr(KindBadCodec, "population-unfavored", r.Pos(), err)
	}

	sorted := append([]int64(nil), favored...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]int64, count)
	fi, ui := 0, 0
	for i, t := range tokens {
		if t != 0 {
			out[i] = favored[fi]
			fi++
		} else {
			out[i] = unfavored[ui]
			ui++
		}
	}
	return &PopulationResult{Values: out, SortedFavored: sorted}, nil
}
