package release

// Novel returns the candidates whose link is not in log, keeping candidate
// order. A link repeated within candidates is returned once.
//
// Novel has no side effects: calling it twice with the same log yields the
// same result.
func Novel(candidates []Release, log *Log) []Release {
	out := make([]Release, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.Link == "" || log.Contains(c.Link) {
			continue
		}
		if _, dup := seen[c.Link]; dup {
			continue
		}
		seen[c.Link] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Reverse returns a reversed copy of rs. The page lists newest first; the
// dispatcher wants oldest first.
func Reverse(rs []Release) []Release {
	out := make([]Release, len(rs))
	for i, r := range rs {
		out[len(rs)-1-i] = r
	}
	return out
}
