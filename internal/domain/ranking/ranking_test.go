package ranking

import "testing"

func TestSort_ScoreDescending(t *testing.T) {
	standings := []Standing{
		{PlayerID: 1, Score: 3, LastUpdate: 100},
		{PlayerID: 2, Score: 25, LastUpdate: 500},
		{PlayerID: 3, Score: 10, LastUpdate: 50},
	}
	Sort(standings)

	want := []int64{2, 3, 1}
	for i, id := range want {
		if standings[i].PlayerID != id {
			t.Fatalf("position %d: got player %d, want %d (%v)", i, standings[i].PlayerID, id, standings)
		}
	}
}

func TestSort_EarlierTimestampWinsTie(t *testing.T) {
	standings := []Standing{
		{PlayerID: 1, Score: 5, LastUpdate: 2000},
		{PlayerID: 2, Score: 5, LastUpdate: 1000},
	}
	Sort(standings)

	if standings[0].PlayerID != 2 {
		t.Errorf("expected earlier completion to rank first, got player %d", standings[0].PlayerID)
	}
}

func TestSort_FullTieBreaksByPlayerID(t *testing.T) {
	standings := []Standing{
		{PlayerID: 9, Score: 0, LastUpdate: 0},
		{PlayerID: 3, Score: 0, LastUpdate: 0},
		{PlayerID: 7, Score: 0, LastUpdate: 0},
	}
	Sort(standings)

	want := []int64{3, 7, 9}
	for i, id := range want {
		if standings[i].PlayerID != id {
			t.Fatalf("position %d: got player %d, want %d", i, standings[i].PlayerID, id)
		}
	}

	// Deterministic across repeated sorts of the same state.
	again := []Standing{
		{PlayerID: 7, Score: 0, LastUpdate: 0},
		{PlayerID: 9, Score: 0, LastUpdate: 0},
		{PlayerID: 3, Score: 0, LastUpdate: 0},
	}
	Sort(again)
	for i := range want {
		if again[i].PlayerID != standings[i].PlayerID {
			t.Fatalf("ordering not reproducible at position %d", i)
		}
	}
}

func TestLess_StrictTotalOrder(t *testing.T) {
	a := Standing{PlayerID: 1, Score: 5, LastUpdate: 10}
	b := Standing{PlayerID: 2, Score: 5, LastUpdate: 10}

	if Less(a, a) {
		t.Error("Less must be irreflexive")
	}
	if Less(a, b) == Less(b, a) {
		t.Error("Less must order any two distinct standings")
	}
}

func TestRanks_DenseAndUnique(t *testing.T) {
	sorted := []Standing{
		{PlayerID: 1, Score: 5},
		{PlayerID: 2, Score: 5},
		{PlayerID: 3, Score: 1},
	}
	ranks := Ranks(sorted)

	if len(ranks) != 3 {
		t.Fatalf("expected 3 ranks, got %d", len(ranks))
	}
	for i, r := range ranks {
		if r != i+1 {
			t.Errorf("rank[%d] = %d, want %d", i, r, i+1)
		}
	}
	if !CheckDense(ranks) {
		t.Error("Ranks output must pass CheckDense")
	}
}

func TestCheckDense(t *testing.T) {
	cases := []struct {
		name  string
		ranks []int
		want  bool
	}{
		{"empty", nil, true},
		{"single", []int{1}, true},
		{"sequence", []int{1, 2, 3, 4}, true},
		{"duplicate", []int{1, 2, 2, 4}, false},
		{"gap", []int{1, 3, 4}, false},
		{"zero based", []int{0, 1, 2}, false},
		{"unordered", []int{2, 1, 3}, false},
	}
	for _, c := range cases {
		if got := CheckDense(c.ranks); got != c.want {
			t.Errorf("%s: CheckDense(%v) = %v, want %v", c.name, c.ranks, got, c.want)
		}
	}
}
