package domain

import "sort"

// RibbonType identifies the award tier for a category placement.
type RibbonType string

const (
	RibbonGold   RibbonType = "gold"
	RibbonSilver RibbonType = "silver"
	RibbonBronze RibbonType = "bronze"
)

// BaseRibbonValues is the VP each ribbon tier is worth before prestige.
var BaseRibbonValues = map[RibbonType]int{
	RibbonGold:   2,
	RibbonSilver: 1,
	RibbonBronze: 0,
}

// ribbonForRank maps a 0-based rank slot to its ribbon tier.
var ribbonForRank = [3]RibbonType{RibbonGold, RibbonSilver, RibbonBronze}

// RibbonAward records one ribbon issued during category scoring.
type RibbonAward struct {
	Player *Player
	Type   RibbonType
	VP     int
	Total  int
}

// CategoryResult is the outcome of scoring one category for a fair.
type CategoryResult struct {
	Winners     []RibbonAward
	TotalPoints int
	Prestige    int
}

// GroupStanding is one player's group VP entry.
type GroupStanding struct {
	Player *Player
	VP     int
}

// GroupResult records the group winner and full standings for a fair.
type GroupResult struct {
	Winner    *Player
	VP        int
	Standings []GroupStanding
}

// FairResult aggregates per-category and per-group scoring for one fair.
type FairResult struct {
	Categories    map[string]CategoryResult
	CategoryOrder []string
	Groups        map[string]GroupResult
	GroupOrder    []string
}

// ScoreCategory ranks players by their category total and issues ribbons.
// Players with a zero total did not participate and are excluded. Tied
// players share a tier, and the tie consumes that many rank slots: a 2-way
// tie for gold skips silver entirely. Ribbon VP is the tier base plus the
// category's prestige. Issues ribbons to winners as a side effect.
func ScoreCategory(categoryName string, players []*Player, prestige int) CategoryResult {
	type entry struct {
		player *Player
		total  int
	}
	var entries []entry
	for _, p := range players {
		if total := p.GetCategoryTotal(categoryName); total > 0 {
			entries = append(entries, entry{player: p, total: total})
		}
	}
	if len(entries) == 0 {
		return CategoryResult{}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].total > entries[j].total })

	result := CategoryResult{Prestige: prestige}
	rank := 0
	for i := 0; i < len(entries) && rank < 3; {
		total := entries[i].total
		tied := 0
		for i < len(entries) && entries[i].total == total {
			tied++
			i++
		}

		ribbonType := ribbonForRank[rank]
		vp := BaseRibbonValues[ribbonType] + prestige
		for _, e := range entries[i-tied : i] {
			e.player.AddRibbon(categoryName, ribbonType, vp)
			result.Winners = append(result.Winners, RibbonAward{
				Player: e.player,
				Type:   ribbonType,
				VP:     vp,
				Total:  total,
			})
		}

		rank += tied
	}

	for _, e := range entries {
		result.TotalPoints += e.total
	}
	return result
}

// ScoreFair scores every active category independently, then ranks players
// within each group present among the active set by their group ribbon VP.
// A group's winner is simply the first player in sort order; ties are not
// broken further.
func ScoreFair(players []*Player, active []Category, prestige map[string]int) FairResult {
	result := FairResult{
		Categories: make(map[string]CategoryResult, len(active)),
		Groups:     make(map[string]GroupResult),
	}

	for _, cat := range active {
		result.Categories[cat.Name] = ScoreCategory(cat.Name, players, prestige[cat.Name])
		result.CategoryOrder = append(result.CategoryOrder, cat.Name)
	}

	seen := make(map[string]bool)
	for _, cat := range active {
		if seen[cat.Group] {
			continue
		}
		seen[cat.Group] = true

		var standings []GroupStanding
		for _, p := range players {
			if vp := p.GetGroupVP(cat.Group, active); vp > 0 {
				standings = append(standings, GroupStanding{Player: p, VP: vp})
			}
		}
		sort.SliceStable(standings, func(i, j int) bool { return standings[i].VP > standings[j].VP })

		if len(standings) > 0 {
			result.Groups[cat.Group] = GroupResult{
				Winner:    standings[0].Player,
				VP:        standings[0].VP,
				Standings: standings,
			}
			result.GroupOrder = append(result.GroupOrder, cat.Group)
		}
	}

	return result
}

// UpdatePrestige grants +1 prestige to the top 3 categories by total points
// played, ties broken by active-set order. Returns the category names that
// gained prestige.
func UpdatePrestige(prestige map[string]int, result FairResult) []string {
	names := make([]string, len(result.CategoryOrder))
	copy(names, result.CategoryOrder)
	sort.SliceStable(names, func(i, j int) bool {
		return result.Categories[names[i]].TotalPoints > result.Categories[names[j]].TotalPoints
	})

	if len(names) > 3 {
		names = names[:3]
	}
	for _, name := range names {
		prestige[name]++
	}
	return names
}

// TallyCategoryTotals computes per-category participation totals without
// issuing ribbons. Used at the fair boundary, where ribbons were already
// awarded and the retirement ranking only needs the totals.
func TallyCategoryTotals(players []*Player, active []Category) FairResult {
	result := FairResult{Categories: make(map[string]CategoryResult, len(active))}
	for _, cat := range active {
		total := 0
		for _, p := range players {
			total += p.GetCategoryTotal(cat.Name)
		}
		result.Categories[cat.Name] = CategoryResult{TotalPoints: total}
		result.CategoryOrder = append(result.CategoryOrder, cat.Name)
	}
	return result
}

// FindCategoryToRetire picks the retirement candidate: lowest total points,
// ties broken by lowest prestige. Returns nil when no categories are active.
// A category nobody played in scores zero and is the natural candidate.
func FindCategoryToRetire(active []Category, prestige map[string]int, result FairResult) *Category {
	if len(active) == 0 {
		return nil
	}

	names := make([]string, len(result.CategoryOrder))
	copy(names, result.CategoryOrder)
	sort.SliceStable(names, func(i, j int) bool {
		pi, pj := result.Categories[names[i]].TotalPoints, result.Categories[names[j]].TotalPoints
		if pi != pj {
			return pi < pj
		}
		return prestige[names[i]] < prestige[names[j]]
	})

	for _, cat := range active {
		if cat.Name == names[0] {
			c := cat
			return &c
		}
	}
	return nil
}
