package session

// Trim bounds a history to at most max non-system turns by dropping the oldest
// ones. System turns are always kept. After trimming, a leading assistant turn
// is also dropped so the window never opens mid-exchange. max <= 0 disables
// the bound.
func Trim(turns []Turn, max int) []Turn {
	if max <= 0 || len(turns) == 0 {
		return turns
	}

	nonSystem := nonSystemIndices(turns)
	toDrop := len(nonSystem) - max
	if toDrop < 0 {
		toDrop = 0
	}
	// never open the window on an assistant reply
	for toDrop < len(nonSystem) && turns[nonSystem[toDrop]].Role == RoleAssistant && toDrop > 0 {
		toDrop++
	}
	if toDrop == 0 {
		return turns
	}

	drop := make(map[int]struct{}, toDrop)
	for i := 0; i < toDrop && i < len(nonSystem); i++ {
		drop[nonSystem[i]] = struct{}{}
	}

	kept := make([]Turn, 0, len(turns)-len(drop))
	for i, turn := range turns {
		if _, ok := drop[i]; ok {
			continue
		}
		kept = append(kept, turn)
	}
	return kept
}

func nonSystemIndices(turns []Turn) []int {
	out := make([]int, 0, len(turns))
	for i, turn := range turns {
		if turn.Role != RoleSystem {
			out = append(out, i)
		}
	}
	return out
}

func cloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return []Turn{}
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
