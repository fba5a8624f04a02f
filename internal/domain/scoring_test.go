package domain

import "testing"

// playerWithTotal builds a player whose board holds a single category card
// worth the given total.
func playerWithTotal(id int, name, category string, total int) *Player {
	p := NewPlayer(id, name)
	if total > 0 {
		p.PlayedCards = []*Card{{Category: category, Value: total}}
	}
	return p
}

func TestScoreCategoryTieBreak(t *testing.T) {
	totals := []int{10, 10, 6, 6, 6, 2}
	players := make([]*Player, len(totals))
	for i, total := range totals {
		players[i] = playerWithTotal(i, "P", "Carrots", total)
	}

	result := ScoreCategory("Carrots", players, 0)

	if len(result.Winners) != 5 {
		t.Fatalf("ribbons issued = %d, want 5", len(result.Winners))
	}

	byType := make(map[RibbonType]int)
	for _, w := range result.Winners {
		byType[w.Type]++
	}
	if byType[RibbonGold] != 2 {
		t.Errorf("gold ribbons = %d, want 2", byType[RibbonGold])
	}
	if byType[RibbonSilver] != 0 {
		t.Errorf("silver ribbons = %d, want 0 (skipped by gold tie)", byType[RibbonSilver])
	}
	if byType[RibbonBronze] != 3 {
		t.Errorf("bronze ribbons = %d, want 3", byType[RibbonBronze])
	}

	if len(players[5].Ribbons) != 0 {
		t.Error("the 2-point player must stay unranked")
	}
	if result.TotalPoints != 40 {
		t.Errorf("totalPoints = %d, want 40", result.TotalPoints)
	}
}

func TestScoreCategoryPrestigeFormula(t *testing.T) {
	players := []*Player{
		playerWithTotal(0, "A", "Pies", 9),
		playerWithTotal(1, "B", "Pies", 7),
		playerWithTotal(2, "C", "Pies", 5),
	}

	result := ScoreCategory("Pies", players, 3)

	want := map[RibbonType]int{RibbonGold: 5, RibbonSilver: 4, RibbonBronze: 3}
	for _, w := range result.Winners {
		if w.VP != want[w.Type] {
			t.Errorf("%s ribbon VP = %d, want %d", w.Type, w.VP, want[w.Type])
		}
	}
}

func TestScoreCategoryNoParticipants(t *testing.T) {
	players := []*Player{NewPlayer(0, "A"), NewPlayer(1, "B")}

	result := ScoreCategory("Chickens", players, 2)

	if len(result.Winners) != 0 || result.TotalPoints != 0 {
		t.Errorf("empty category result = %+v, want no winners and 0 points", result)
	}
}

func TestScoreFairGroupWinner(t *testing.T) {
	active := []Category{
		{Name: "Carrots", Group: GroupProduce},
		{Name: "Pumpkins", Group: GroupProduce},
		{Name: "Pies", Group: GroupBaking},
	}
	prestige := map[string]int{"Carrots": 0, "Pumpkins": 0, "Pies": 0}

	alice := playerWithTotal(0, "Alice", "Carrots", 8)
	bob := playerWithTotal(1, "Bob", "Pumpkins", 6)
	players := []*Player{alice, bob}

	result := ScoreFair(players, active, prestige)

	produce, ok := result.Groups[GroupProduce]
	if !ok {
		t.Fatal("expected a Produce group result")
	}
	// Both earned a gold worth 2; the stable sort keeps seat order, so
	// Alice wins the group.
	if produce.Winner != alice {
		t.Errorf("Produce winner = %s, want Alice", produce.Winner.Name)
	}
	if len(produce.Standings) != 2 {
		t.Errorf("Produce standings = %d entries, want 2", len(produce.Standings))
	}

	if _, ok := result.Groups[GroupLivestock]; ok {
		t.Error("Livestock has no active categories and must not appear")
	}
}

func TestUpdatePrestigeTopThree(t *testing.T) {
	result := FairResult{
		Categories: map[string]CategoryResult{
			"Carrots":  {TotalPoints: 12},
			"Pumpkins": {TotalPoints: 20},
			"Pies":     {TotalPoints: 15},
			"Cows":     {TotalPoints: 3},
		},
		CategoryOrder: []string{"Carrots", "Pumpkins", "Pies", "Cows"},
	}
	prestige := map[string]int{"Carrots": 1, "Pumpkins": 0, "Pies": 0, "Cows": 0}

	top := UpdatePrestige(prestige, result)

	if len(top) != 3 {
		t.Fatalf("top categories = %d, want 3", len(top))
	}
	if top[0] != "Pumpkins" || top[1] != "Pies" || top[2] != "Carrots" {
		t.Errorf("top order = %v, want [Pumpkins Pies Carrots]", top)
	}
	if prestige["Pumpkins"] != 1 || prestige["Pies"] != 1 || prestige["Carrots"] != 2 {
		t.Errorf("prestige after update = %v", prestige)
	}
	if prestige["Cows"] != 0 {
		t.Errorf("Cows prestige = %d, want 0", prestige["Cows"])
	}
}

func TestFindCategoryToRetire(t *testing.T) {
	active := []Category{
		{Name: "Carrots", Group: GroupProduce},
		{Name: "Pies", Group: GroupBaking},
		{Name: "Cows", Group: GroupLivestock},
	}

	tests := []struct {
		name     string
		points   map[string]int
		prestige map[string]int
		want     string
	}{
		{
			name:     "LowestPoints",
			points:   map[string]int{"Carrots": 10, "Pies": 4, "Cows": 8},
			prestige: map[string]int{},
			want:     "Pies",
		},
		{
			name:     "TieBrokenByPrestige",
			points:   map[string]int{"Carrots": 5, "Pies": 5, "Cows": 9},
			prestige: map[string]int{"Carrots": 2, "Pies": 0},
			want:     "Pies",
		},
		{
			name:     "ZeroParticipationRetiresFirst",
			points:   map[string]int{"Carrots": 0, "Pies": 6, "Cows": 3},
			prestige: map[string]int{"Carrots": 4},
			want:     "Carrots",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FairResult{Categories: make(map[string]CategoryResult)}
			for _, cat := range active {
				result.Categories[cat.Name] = CategoryResult{TotalPoints: tt.points[cat.Name]}
				result.CategoryOrder = append(result.CategoryOrder, cat.Name)
			}

			got := FindCategoryToRetire(active, tt.prestige, result)
			if got == nil || got.Name != tt.want {
				t.Errorf("retire candidate = %v, want %s", got, tt.want)
			}
		})
	}

	if got := FindCategoryToRetire(nil, nil, FairResult{}); got != nil {
		t.Errorf("no active categories must yield nil, got %v", got)
	}
}

func TestTallyCategoryTotalsIssuesNoRibbons(t *testing.T) {
	active := []Category{
		{Name: "Carrots", Group: GroupProduce},
		{Name: "Pies", Group: GroupBaking},
	}
	players := []*Player{
		playerWithTotal(0, "Alice", "Carrots", 8),
		playerWithTotal(1, "Bob", "Pies", 5),
	}

	result := TallyCategoryTotals(players, active)

	if result.Categories["Carrots"].TotalPoints != 8 || result.Categories["Pies"].TotalPoints != 5 {
		t.Errorf("totals = %d/%d, want 8/5",
			result.Categories["Carrots"].TotalPoints, result.Categories["Pies"].TotalPoints)
	}
	for _, p := range players {
		if len(p.Ribbons) != 0 || p.TotalVP != 0 {
			t.Errorf("%s gained ribbons from a tally: %d ribbons, %d VP", p.Name, len(p.Ribbons), p.TotalVP)
		}
	}
}
