package fog

// CompactionConfig bounds how large a map's list of revealed areas may grow
type CompactionConfig struct {
	// Threshold is the size above which compaction runs at all
	Threshold int
	// DedupTolerance is the per-coordinate distance under which two areas are duplicates
	DedupTolerance int
	// MaxAreas is the size above which the deduplicated list is decimated
	MaxAreas int
}

// DefaultCompactionConfig returns the default compaction limits
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		Threshold:      1000,
		DedupTolerance: 3,
		MaxAreas:       5000,
	}
}

// CompactionResult describes what a compaction pass did
type CompactionResult struct {
	Before       int
	Deduplicated int
	After        int
	// Stride is the decimation step, or 0 when no decimation happened
	Stride int
}

// Changed reports whether any area was dropped
func (r CompactionResult) Changed() bool {
	return r.After != r.Before
}

// Compact removes near-duplicate areas and, if the list is still too long,
// keeps only every stride-th area. Lists at or below the threshold are
// returned untouched. Compaction is lossy.
func Compact(areas []RevealedArea, config CompactionConfig) ([]RevealedArea, CompactionResult) {
	result := CompactionResult{Before: len(areas), Deduplicated: len(areas), After: len(areas)}
	if len(areas) <= config.Threshold {
		return areas, result
	}

	deduped := dedupe(areas, config.DedupTolerance)
	result.Deduplicated = len(deduped)

	if config.MaxAreas > 0 && len(deduped) > config.MaxAreas {
		stride := len(deduped)/config.MaxAreas + 1
		deduped = decimate(deduped, stride)
		result.Stride = stride
	}

	result.After = len(deduped)
	return deduped, result
}

// dedupe keeps the first of any group of areas whose x, y and radius all
// differ by less than tolerance from an already kept area.
func dedupe(areas []RevealedArea, tolerance int) []RevealedArea {
	kept := make([]RevealedArea, 0, len(areas))
	for _, a := range areas {
		duplicate := false
		for _, k := range kept {
			if absInt(k.X-a.X) < tolerance && absInt(k.Y-a.Y) < tolerance && absInt(k.Radius-a.Radius) < tolerance {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, a)
		}
	}
	return kept
}

func decimate(areas []RevealedArea, stride int) []RevealedArea {
	out := make([]RevealedArea, 0, len(areas)/stride+1)
	for i := 0; i < len(areas); i += stride {
		out = append(out, areas[i])
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
