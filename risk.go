package execguard

// ScoreRisk aggregates the risk of invoking command with the given argument
// vector under shell. argv is the full vector; tokens after the program name
// are matched against argument-specific threat records.
//
// The result is the per-dimension maximum of the baseline record and every
// record whose Argument exactly equals an argv token. Tokens with no
// matching record contribute nothing. If the database holds no record at
// all for (shell, command), ScoreRisk fails with an UnknownCommandError;
// callers recover by falling back to the generic policy.
func ScoreRisk(db *ThreatDatabase, shell Shell, command string, argv []string) (RiskVector, error) {
	recs := db.Lookup(shell, command)
	if len(recs) == 0 {
		return RiskVector{}, &UnknownCommandError{Shell: shell, Command: command}
	}

	var out RiskVector
	byArg := make(map[string]RiskVector, len(recs))
	for _, rec := range recs {
		if rec.Argument == "" {
			out = rec.Risk // baseline
			continue
		}
		byArg[rec.Argument] = rec.Risk
	}

	tokens := argv
	if len(tokens) > 0 {
		tokens = tokens[1:] // skip the program name
	}
	for _, tok := range tokens {
		if risk, ok := byArg[tok]; ok {
			out = out.Max(risk)
		}
	}
	return out, nil
}
