package tournament

// RoundRobinPairings returns the player pairs for 1-indexed round
// using the standard circle method: fix the first player, rotate the
// rest. An odd-sized field gets a bye placeholder ("") in one slot
// each round — callers skip any pair containing it. Grounded on the
// teacher's starter.assignPlayersToTables shuffle-then-distribute
// shape (internal/tournament/starter.go), adapted from "seat players
// at tables" to "pair players for a round".
func RoundRobinPairings(players []string, round int) [][2]string {
	n := len(players)
	if n == 0 {
		return nil
	}
	field := append([]string{}, players...)
	if n%2 != 0 {
		field = append(field, "")
		n++
	}

	rotated := make([]string, n)
	copy(rotated, field)
	for i := 0; i < round%(n-1); i++ {
		fixed := rotated[0]
		rest := append(rotated[2:], rotated[1])
		rotated = append([]string{fixed}, rest...)
	}

	pairs := make([][2]string, 0, n/2)
	for i := 0; i < n/2; i++ {
		a, b := rotated[i], rotated[n-1-i]
		if a == "" || b == "" {
			continue
		}
		pairs = append(pairs, [2]string{a, b})
	}
	return pairs
}
