package pipeline

import (
	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// Phase metrics are derived from the current working set plus the few
// counters the lines cannot answer for themselves (tm_hits, checked and
// edited lines). Denominators come from quantities that are stable for
// the life of the run, so a locked total never moves between snapshots.

// startMetrics builds a phase's metrics as it begins running.
func (r *run) startMetrics(phase model.Phase) []model.ProgressMetric {
	return r.metricsSnapshot(phase, false)
}

// metricsSnapshot computes the phase's current metric values. With
// final set, counter metrics whose totals are only known once the phase
// is over (tm_hits, issues_flagged) lock at their final counts; until
// then they report as discovering with no percent.
func (r *run) metricsSnapshot(phase model.Phase, final bool) []model.ProgressMetric {
	switch phase {
	case model.PhaseIngest:
		files := int64(0)
		if len(r.lines) > 0 {
			files = 1
		}
		ingested := model.ProgressMetric{
			MetricKey:   "lines_ingested",
			Unit:        "lines",
			TotalStatus: model.TotalDiscovering,
			PercentMode: model.PercentUnavailable,
		}
		if len(r.lines) > 0 {
			ingested = lockedMetric("lines_ingested", "lines", int64(len(r.lines)), int64(len(r.lines)))
		}
		return []model.ProgressMetric{
			lockedMetric("files_parsed", "files", files, 1),
			ingested,
		}

	case model.PhaseContext:
		scenesDone, scenesTotal := r.scenesAnnotated()
		speakersDone, speakersTotal := r.speakersProfiled()
		return []model.ProgressMetric{
			lockedMetric("scenes_annotated", "scenes", scenesDone, scenesTotal),
			lockedMetric("speakers_profiled", "speakers", speakersDone, speakersTotal),
		}

	case model.PhasePretranslation:
		return []model.ProgressMetric{
			lockedMetric("lines_matched", "lines", r.translatedCount(), int64(len(r.lines))),
			countingMetric("tm_hits", "segments", r.tmHits, final),
		}

	case model.PhaseTranslate:
		scenesDone, scenesTotal := r.scenesTranslated()
		return []model.ProgressMetric{
			lockedMetric("lines_translated", "lines", r.translatedCount(), int64(len(r.lines))),
			lockedMetric("scenes_completed", "scenes", scenesDone, scenesTotal),
		}

	case model.PhaseQA:
		return []model.ProgressMetric{
			lockedMetric("lines_checked", "lines", r.linesChecked, int64(len(r.lines))),
			countingMetric("issues_flagged", "issues", r.flaggedCount(), final),
		}

	case model.PhaseEdit:
		// Edits conserve flagged-plus-handled: resolving an issue moves
		// it from the flagged remainder into the counter, so the total
		// holds still while completion climbs.
		flagged := r.flaggedCount()
		return []model.ProgressMetric{
			lockedMetric("lines_edited", "lines", r.linesEdited, r.linesEdited+flagged),
			lockedMetric("issues_resolved", "issues", r.issuesResolved, r.issuesResolved+flagged),
		}

	case model.PhaseExport:
		files, exported := int64(0), int64(0)
		if final {
			files, exported = 1, int64(len(r.lines))
		}
		return []model.ProgressMetric{
			lockedMetric("files_written", "files", files, 1),
			lockedMetric("lines_exported", "lines", exported, int64(len(r.lines))),
		}

	default:
		return nil
	}
}

// lockedMetric reports an exact percentage against a fixed total. A
// zero total means nothing to do, which counts as done.
func lockedMetric(key, unit string, completed, total int64) model.ProgressMetric {
	p := 100.0
	if total > 0 {
		p = float64(completed) / float64(total) * 100
	}
	return model.ProgressMetric{
		MetricKey:       key,
		Unit:            unit,
		CompletedUnits:  completed,
		TotalUnits:      &total,
		TotalStatus:     model.TotalLocked,
		PercentComplete: &p,
		PercentMode:     model.PercentFinal,
	}
}

// countingMetric reports a count whose total is unknowable until the
// phase ends: while discovering it carries no percent, and once final
// it locks at the discovered count.
func countingMetric(key, unit string, completed int64, final bool) model.ProgressMetric {
	if final {
		return lockedMetric(key, unit, completed, completed)
	}
	return model.ProgressMetric{
		MetricKey:      key,
		Unit:           unit,
		CompletedUnits: completed,
		TotalStatus:    model.TotalDiscovering,
		PercentMode:    model.PercentUnavailable,
	}
}

func (r *run) translatedCount() int64 {
	var n int64
	for i := range r.lines {
		if !r.lines[i].Translation.Empty() {
			n++
		}
	}
	return n
}

func (r *run) flaggedCount() int64 {
	var n int64
	for i := range r.lines {
		if !r.lines[i].QANote.Empty() {
			n++
		}
	}
	return n
}

// scenesAnnotated counts scenes whose every line carries a context
// note, over all scenes. Lines before any scene marker share the
// unnamed scene.
func (r *run) scenesAnnotated() (done, total int64) {
	return r.scenesWhere(func(l *model.DialogueLine) bool {
		return !l.ContextNote.Empty()
	})
}

// scenesTranslated counts scenes whose every line has a translation.
func (r *run) scenesTranslated() (done, total int64) {
	return r.scenesWhere(func(l *model.DialogueLine) bool {
		return !l.Translation.Empty()
	})
}

func (r *run) scenesWhere(lineDone func(*model.DialogueLine) bool) (done, total int64) {
	complete := make(map[string]bool)
	for i := range r.lines {
		l := &r.lines[i]
		if seen, ok := complete[l.Scene]; !ok {
			complete[l.Scene] = lineDone(l)
		} else if seen && !lineDone(l) {
			complete[l.Scene] = false
		}
	}
	for _, ok := range complete {
		if ok {
			done++
		}
	}
	return done, int64(len(complete))
}

// speakersProfiled counts named speakers with at least one annotated
// line, over all named speakers.
func (r *run) speakersProfiled() (done, total int64) {
	profiled := make(map[string]bool)
	for i := range r.lines {
		l := &r.lines[i]
		if l.Speaker == "" {
			continue
		}
		if !l.ContextNote.Empty() {
			profiled[l.Speaker] = true
		} else if _, ok := profiled[l.Speaker]; !ok {
			profiled[l.Speaker] = false
		}
	}
	for _, ok := range profiled {
		if ok {
			done++
		}
	}
	return done, int64(len(profiled))
}
