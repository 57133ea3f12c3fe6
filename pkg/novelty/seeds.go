package novelty

// DefaultSeeds returns the built-in library of seeded Golden Age structural
// patterns the Novelty Auditor compares a generated CML against. The
// orchestrator loads this once at startup and passes it through
// agent.Inputs.NoveltySeeds, never mutating it (spec.md §4.7).
func DefaultSeeds() []SeedPattern {
	return []SeedPattern{
		{ID: "locked-room-classic", Category: map[Category]string{
			CategoryAxis:               "spatial",
			CategoryMechanismFamily:    "locked_room",
			CategoryFalseAssumption:    "impossible_access",
			CategoryDiscriminatingTest: "reconstruction",
			CategoryEra:                "1920s",
			CategoryLocationType:       "country_house",
		}},
		{ID: "unreliable-timeline", Category: map[Category]string{
			CategoryAxis:               "temporal",
			CategoryMechanismFamily:    "false_alibi",
			CategoryFalseAssumption:    "clock_tampering",
			CategoryDiscriminatingTest: "timed_reenactment",
			CategoryEra:                "1930s",
			CategoryLocationType:       "manor_house",
		}},
		{ID: "impersonation-reveal", Category: map[Category]string{
			CategoryAxis:               "identity",
			CategoryMechanismFamily:    "disguise",
			CategoryFalseAssumption:    "mistaken_identity",
			CategoryDiscriminatingTest: "physical_tell",
			CategoryEra:                "1920s",
			CategoryLocationType:       "ocean_liner",
		}},
		{ID: "second-set-of-footprints", Category: map[Category]string{
			CategoryAxis:               "behavioral",
			CategoryMechanismFamily:    "staged_evidence",
			CategoryFalseAssumption:    "forged_trail",
			CategoryDiscriminatingTest: "gait_comparison",
			CategoryEra:                "1930s",
			CategoryLocationType:       "snowbound_lodge",
		}},
		{ID: "chain-of-command-cover", Category: map[Category]string{
			CategoryAxis:               "authority",
			CategoryMechanismFamily:    "abuse_of_office",
			CategoryFalseAssumption:    "deference_to_rank",
			CategoryDiscriminatingTest: "paper_trail",
			CategoryEra:                "1940s",
			CategoryLocationType:       "village",
		}},
	}
}
