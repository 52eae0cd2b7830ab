// File: internal/usecase/organize_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
	"github.com/hn770123/memory-assistant-v3/internal/infra/logging"
	"github.com/hn770123/memory-assistant-v3/internal/infra/metrics"
)

// Compile-time check
var _ OrganizeUseCase = (*organizeUC)(nil)

// OrganizeUseCase runs the memory organize job: duplicate merging,
// formatting, conflict resolution and compression across the four stores.
// One run at a time; progress is exposed as a cumulative append-only log
// that clients poll via Status.
type OrganizeUseCase interface {
	// Start launches a run in the background. Returns
	// domain.ErrJobAlreadyRunning while a run is active.
	Start(ctx context.Context) error
	Status() model.OrganizeStatus
}

// Prompts instruct in English; user data stays in whatever language it was
// stored in.
const (
	duplicatePrompt = `Identify pairs of items that have the same meaning or are duplicates from the list below.

### Item List
%s

### Output Format
Output the duplicate pairs in JSON format. If there are no duplicates, return an empty array.
[{"id1": 1, "id2": 3, "reason": "Both mention exactly the same topic"}]
Output JSON ONLY. No other text.`

	mergePrompt = `Merge the following two items into one.
Include all important information from both to ensure no information is lost.

### Item 1
%s

### Item 2
%s

### Output Format
Output the merged content in a single sentence. No JSON.`

	formatPrompt = `Refine the expression of the following text into natural language.
Make it easier to read without changing the meaning.

### Original Text
%s

### Output Format
Output the refined text. Keep it concise.`

	compressPrompt = `Compress the following episode.
Keep the important information but make the expression shorter.

### Compression Level
%d (1:Light, 2:Medium, 3:Strong)

### Original Episode
%s

### Output Format
Output the compressed episode. The higher the compression level, the shorter it should be.`

	conflictPrompt = `Identify conflicting items from the following list.
Conflicting items have contradictory information about the same topic.

### Item List
%s

### Output Format
Output the conflicting pairs in JSON format. If there are no conflicts, return an empty array.
[{"id1": 1, "id2": 3, "newer_id": 3, "reason": "Values are contradictory"}]
In newer_id, specify the ID of the newer information (the one that should be kept).
Output JSON ONLY. No other text.`
)

// Episode ages (days) at which compression levels kick in.
var compressionAges = [...]struct {
	days  int
	level int
}{
	{365, model.CompressionStrong},
	{90, model.CompressionMedium},
	{30, model.CompressionLight},
}

type duplicatePair struct {
	ID1    int64  `json:"id1"`
	ID2    int64  `json:"id2"`
	Reason string `json:"reason"`
}

type conflictPair struct {
	ID1     int64  `json:"id1"`
	ID2     int64  `json:"id2"`
	NewerID int64  `json:"newer_id"`
	Reason  string `json:"reason"`
}

type organizeUC struct {
	attrs    repository.AttributeRepository
	episodes repository.EpisodeRepository
	goals    repository.GoalRepository
	requests repository.RequestRepository
	ai       adapter.AIServiceAdapter
	model    string
	maxItems int
	jobLog   *JobLog
	log      *zerolog.Logger
}

func NewOrganizeUseCase(
	attrs repository.AttributeRepository,
	episodes repository.EpisodeRepository,
	goals repository.GoalRepository,
	requests repository.RequestRepository,
	ai adapter.AIServiceAdapter,
	modelName string,
	maxItemsPerStep int,
	logger *zerolog.Logger,
) *organizeUC {
	l := logger.With().Str("component", "OrganizeUC").Logger()
	return &organizeUC{
		attrs:    attrs,
		episodes: episodes,
		goals:    goals,
		requests: requests,
		ai:       ai,
		model:    modelName,
		maxItems: maxItemsPerStep,
		jobLog:   NewJobLog(),
		log:      &l,
	}
}

func (o *organizeUC) Start(ctx context.Context) error {
	if !o.jobLog.TryStart() {
		metrics.IncOrganizeRun("rejected")
		return domain.ErrJobAlreadyRunning
	}
	// The run outlives the HTTP request that started it.
	runCtx := logging.WithJobID(context.WithoutCancel(ctx), ulid.Make().String())
	go o.run(runCtx)
	return nil
}

func (o *organizeUC) Status() model.OrganizeStatus {
	running, events := o.jobLog.Snapshot()
	return model.OrganizeStatus{IsOrganizing: running, Logs: events}
}

func (o *organizeUC) run(ctx context.Context) {
	defer o.jobLog.Finish()
	defer logging.TraceDuration(logging.With(ctx, o.log), "OrganizeUC.run")()

	o.progress(model.StepOverall, 0, model.StepStarted,
		"starting memory organization (attributes, episodes, goals, requests)", 0, 0)

	steps := []struct {
		step  string
		order int
		fn    func(context.Context, string, string) error
	}{
		{model.StepAttribute, 1, o.organizeAttributes},
		{model.StepEpisode, 2, o.organizeEpisodes},
		{model.StepGoal, 3, o.organizeGoals},
		{model.StepRequest, 4, o.organizeRequests},
	}

	for _, s := range steps {
		display := stepDisplay(s.step, s.order)
		o.progress(s.step, s.order, model.StepStarted, "organizing "+s.step+"s", 0, 0)
		if err := s.fn(ctx, s.step, display); err != nil {
			o.log.Error().Err(err).Str("step", s.step).Msg("organize step failed")
			o.jobLog.Append(model.LogEvent{
				Step:    model.StepOverall,
				Status:  model.StepError,
				Message: fmt.Sprintf("organize failed at %s: %v", display, err),
			})
			metrics.IncOrganizeStep(s.step, "failed")
			metrics.IncOrganizeRun("failed")
			return
		}
		o.progress(s.step, s.order, model.StepCompleted, display+" done", 0, 0)
		metrics.IncOrganizeStep(s.step, "completed")
	}

	o.progress(model.StepOverall, 0, model.StepCompleted, "memory organization finished", 0, 0)
	metrics.IncOrganizeRun("completed")
}

func stepDisplay(step string, order int) string {
	if order == 0 {
		return step
	}
	return fmt.Sprintf("step %d/4: %s", order, step)
}

func (o *organizeUC) progress(step string, order int, status model.StepStatus, msg string, current, total int) {
	ev := model.LogEvent{
		Step:        step,
		StepDisplay: stepDisplay(step, order),
		Status:      status,
		Message:     msg,
	}
	if total > 0 {
		ev.Progress = &model.StepProgress{Current: current, Total: total}
	}
	o.jobLog.Append(ev)
}

// generate performs one LLM call and records it as an interaction entry.
func (o *organizeUC) generate(ctx context.Context, action, prompt string) (string, error) {
	resp, err := o.ai.Generate(ctx, o.model, prompt)
	ev := model.LogEvent{
		Type:   model.TypeLLMInteraction,
		Action: action,
		Prompt: prompt,
	}
	if err != nil {
		ev.Response = "error: " + err.Error()
	} else {
		ev.Response = resp
	}
	o.jobLog.Append(ev)
	return resp, err
}

// parseJSONList tolerates markdown code fences around the model's output.
func parseJSONList(raw string, out any) error {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "["); i >= 0 {
		if j := strings.LastIndex(s, "]"); j > i {
			s = s[i : j+1]
		}
	}
	return json.Unmarshal([]byte(s), out)
}

// ---- step 1: attributes ----

func (o *organizeUC) organizeAttributes(ctx context.Context, step, display string) error {
	attrs, err := o.attrs.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list attributes: %w", err)
	}
	if len(attrs) == 0 {
		o.progress(step, 1, model.StepSkipped, "no attributes to organize", 0, 0)
		return nil
	}
	o.progress(step, 1, model.StepProcessing, fmt.Sprintf("checking %d attributes", len(attrs)), 0, len(attrs))

	if len(attrs) >= 2 {
		items := make([]string, 0, len(attrs))
		for _, a := range cappedAttrs(attrs, o.maxItems) {
			items = append(items, fmt.Sprintf("ID:%d - %s: %s", a.ID, a.Name, a.Value))
		}
		raw, err := o.generate(ctx, "detect_conflicts", fmt.Sprintf(conflictPrompt, strings.Join(items, "\n")))
		if err == nil {
			var conflicts []conflictPair
			if parseJSONList(raw, &conflicts) == nil {
				o.resolveAttributeConflicts(ctx, step, conflicts, attrs)
			}
		}
	}

	attrs, err = o.attrs.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list attributes: %w", err)
	}
	capped := cappedAttrs(attrs, o.maxItems)
	for i, a := range capped {
		o.progress(step, 1, model.StepProcessing,
			fmt.Sprintf("formatting attribute %q", a.Name), i+1, len(capped))
		formatted, err := o.generate(ctx, "format", fmt.Sprintf(formatPrompt, a.Name+": "+a.Value))
		if err != nil {
			continue
		}
		value := strings.TrimSpace(formatted)
		if idx := strings.Index(value, ":"); idx >= 0 {
			value = strings.TrimSpace(value[idx+1:])
		}
		if value != "" && value != a.Value {
			if err := o.attrs.UpdateValue(ctx, a.ID, value); err != nil {
				return fmt.Errorf("update attribute %d: %w", a.ID, err)
			}
		}
	}
	return nil
}

func (o *organizeUC) resolveAttributeConflicts(ctx context.Context, step string, conflicts []conflictPair, attrs []*model.Attribute) {
	byID := make(map[int64]*model.Attribute, len(attrs))
	for _, a := range attrs {
		byID[a.ID] = a
	}
	seen := map[int64]bool{}
	for _, c := range conflicts {
		if seen[c.ID1] || seen[c.ID2] {
			continue
		}
		a1, a2 := byID[c.ID1], byID[c.ID2]
		if a1 == nil || a2 == nil {
			continue
		}
		older := c.ID1
		if c.NewerID == c.ID1 {
			older = c.ID2
		}
		o.progress(step, 1, model.StepProcessing,
			fmt.Sprintf("resolving conflicting attribute %q", a1.Name), 0, 0)
		if err := o.attrs.Delete(ctx, older); err != nil {
			o.log.Warn().Err(err).Int64("id", older).Msg("conflict delete failed")
			continue
		}
		seen[c.ID1], seen[c.ID2] = true, true
	}
}

func cappedAttrs(attrs []*model.Attribute, max int) []*model.Attribute {
	if len(attrs) > max {
		return attrs[:max]
	}
	return attrs
}

// ---- step 2: episodes ----

func (o *organizeUC) organizeEpisodes(ctx context.Context, step, display string) error {
	eps, err := o.episodes.ListAll(ctx, true)
	if err != nil {
		return fmt.Errorf("list episodes: %w", err)
	}
	if len(eps) == 0 {
		o.progress(step, 2, model.StepSkipped, "no episodes to organize", 0, 0)
		return nil
	}
	o.progress(step, 2, model.StepProcessing, fmt.Sprintf("checking %d episodes", len(eps)), 0, len(eps))

	if len(eps) >= 2 {
		o.mergeDuplicateEpisodes(ctx, step, eps)
	}

	eps, err = o.episodes.ListAll(ctx, true)
	if err != nil {
		return fmt.Errorf("list episodes: %w", err)
	}
	n := len(eps)
	if n > o.maxItems {
		n = o.maxItems
	}
	for i, ep := range eps[:n] {
		o.progress(step, 2, model.StepProcessing, "formatting episodes", i+1, n)
		formatted, err := o.generate(ctx, "format", fmt.Sprintf(formatPrompt, ep.Content))
		if err != nil {
			continue
		}
		if f := strings.TrimSpace(formatted); f != "" && f != ep.Content {
			if err := o.episodes.UpdateContent(ctx, ep.ID, f); err != nil {
				return fmt.Errorf("update episode %d: %w", ep.ID, err)
			}
		}
	}

	return o.compressOldEpisodes(ctx, step)
}

func (o *organizeUC) mergeDuplicateEpisodes(ctx context.Context, step string, eps []*model.Episode) {
	n := len(eps)
	if n > o.maxItems {
		n = o.maxItems
	}
	items := make([]string, 0, n)
	for _, ep := range eps[:n] {
		items = append(items, fmt.Sprintf("ID:%d - %s", ep.ID, ep.Content))
	}
	raw, err := o.generate(ctx, "detect_duplicates", fmt.Sprintf(duplicatePrompt, strings.Join(items, "\n")))
	if err != nil {
		return
	}
	var dups []duplicatePair
	if parseJSONList(raw, &dups) != nil {
		return
	}

	byID := make(map[int64]*model.Episode, len(eps))
	for _, ep := range eps {
		byID[ep.ID] = ep
	}
	seen := map[int64]bool{}
	for _, d := range dups {
		if seen[d.ID1] || seen[d.ID2] {
			continue
		}
		e1, e2 := byID[d.ID1], byID[d.ID2]
		if e1 == nil || e2 == nil {
			continue
		}
		o.progress(step, 2, model.StepProcessing,
			fmt.Sprintf("merging episodes %d and %d", d.ID1, d.ID2), 0, 0)
		merged, err := o.generate(ctx, "merge", fmt.Sprintf(mergePrompt, e1.Content, e2.Content))
		if err != nil {
			continue
		}
		if m := strings.TrimSpace(merged); m != "" {
			if err := o.episodes.UpdateContent(ctx, e1.ID, m); err != nil {
				continue
			}
			_ = o.episodes.Delete(ctx, e2.ID, false)
			seen[d.ID1], seen[d.ID2] = true, true
		}
	}
}

func (o *organizeUC) compressOldEpisodes(ctx context.Context, step string) error {
	eps, err := o.episodes.ListAll(ctx, true)
	if err != nil {
		return fmt.Errorf("list episodes: %w", err)
	}
	now := time.Now()
	for _, ep := range eps {
		days := int(now.Sub(ep.CreatedAt).Hours() / 24)
		target := 0
		for _, t := range compressionAges {
			if days >= t.days && ep.CompressionLevel < t.level {
				target = t.level
				break
			}
		}
		if target == 0 {
			continue
		}
		o.progress(step, 2, model.StepProcessing,
			fmt.Sprintf("compressing episode %d to level %d", ep.ID, target), 0, 0)
		compressed, err := o.generate(ctx, "compress", fmt.Sprintf(compressPrompt, target, ep.Content))
		if err != nil {
			continue
		}
		if c := strings.TrimSpace(compressed); c != "" && len(c) < len(ep.Content) {
			if err := o.episodes.UpdateCompression(ctx, ep.ID, target, c); err != nil {
				return fmt.Errorf("compress episode %d: %w", ep.ID, err)
			}
		}
	}
	return nil
}

// ---- step 3: goals ----

func (o *organizeUC) organizeGoals(ctx context.Context, step, display string) error {
	goals, err := o.goals.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	active := goals[:0:0]
	for _, g := range goals {
		if g.Status == model.GoalActive {
			active = append(active, g)
		}
	}
	if len(active) == 0 {
		o.progress(step, 3, model.StepSkipped, "no goals to organize", 0, 0)
		return nil
	}
	o.progress(step, 3, model.StepProcessing, fmt.Sprintf("checking %d goals", len(active)), 0, len(active))

	if len(active) >= 2 {
		items := make([]string, 0, len(active))
		for i, g := range active {
			if i == o.maxItems {
				break
			}
			items = append(items, fmt.Sprintf("ID:%d - %s (%s)", g.ID, g.Content, g.Status))
		}
		raw, err := o.generate(ctx, "detect_conflicts", fmt.Sprintf(conflictPrompt, strings.Join(items, "\n")))
		if err == nil {
			var conflicts []conflictPair
			if parseJSONList(raw, &conflicts) == nil {
				cancelled := model.GoalCancelled
				seen := map[int64]bool{}
				for _, c := range conflicts {
					if seen[c.ID1] || seen[c.ID2] {
						continue
					}
					older := c.ID1
					if c.NewerID == c.ID1 {
						older = c.ID2
					}
					o.progress(step, 3, model.StepProcessing,
						fmt.Sprintf("cancelling superseded goal %d", older), 0, 0)
					if err := o.goals.Update(ctx, older, nil, &cancelled, nil); err != nil {
						continue
					}
					seen[c.ID1], seen[c.ID2] = true, true
				}
			}
		}
	}

	n := len(active)
	if n > o.maxItems {
		n = o.maxItems
	}
	for i, g := range active[:n] {
		o.progress(step, 3, model.StepProcessing, "formatting goals", i+1, n)
		formatted, err := o.generate(ctx, "format", fmt.Sprintf(formatPrompt, g.Content))
		if err != nil {
			continue
		}
		if f := strings.TrimSpace(formatted); f != "" && f != g.Content {
			if err := o.goals.Update(ctx, g.ID, &f, nil, nil); err != nil {
				return fmt.Errorf("update goal %d: %w", g.ID, err)
			}
		}
	}
	return nil
}

// ---- step 4: requests ----

func (o *organizeUC) organizeRequests(ctx context.Context, step, display string) error {
	reqs, err := o.requests.ListAll(ctx, true)
	if err != nil {
		return fmt.Errorf("list requests: %w", err)
	}
	if len(reqs) == 0 {
		o.progress(step, 4, model.StepSkipped, "no requests to organize", 0, 0)
		return nil
	}
	o.progress(step, 4, model.StepProcessing, fmt.Sprintf("checking %d requests", len(reqs)), 0, len(reqs))

	if len(reqs) >= 2 {
		n := len(reqs)
		if n > o.maxItems {
			n = o.maxItems
		}
		items := make([]string, 0, n)
		for _, r := range reqs[:n] {
			items = append(items, fmt.Sprintf("ID:%d - %s", r.ID, r.Content))
		}
		raw, err := o.generate(ctx, "detect_duplicates", fmt.Sprintf(duplicatePrompt, strings.Join(items, "\n")))
		if err == nil {
			var dups []duplicatePair
			if parseJSONList(raw, &dups) == nil {
				byID := make(map[int64]*model.AssistantRequest, len(reqs))
				for _, r := range reqs {
					byID[r.ID] = r
				}
				seen := map[int64]bool{}
				for _, d := range dups {
					if seen[d.ID1] || seen[d.ID2] {
						continue
					}
					r1, r2 := byID[d.ID1], byID[d.ID2]
					if r1 == nil || r2 == nil {
						continue
					}
					o.progress(step, 4, model.StepProcessing,
						fmt.Sprintf("merging requests %d and %d", d.ID1, d.ID2), 0, 0)
					merged, err := o.generate(ctx, "merge", fmt.Sprintf(mergePrompt, r1.Content, r2.Content))
					if err != nil {
						continue
					}
					if m := strings.TrimSpace(merged); m != "" {
						if err := o.requests.UpdateContent(ctx, r1.ID, m); err != nil {
							continue
						}
						_ = o.requests.Delete(ctx, r2.ID)
						seen[d.ID1], seen[d.ID2] = true, true
					}
				}
			}
		}
	}

	n := len(reqs)
	if n > o.maxItems {
		n = o.maxItems
	}
	for i, r := range reqs[:n] {
		o.progress(step, 4, model.StepProcessing, "formatting requests", i+1, n)
		formatted, err := o.generate(ctx, "format", fmt.Sprintf(formatPrompt, r.Content))
		if err != nil {
			continue
		}
		if f := strings.TrimSpace(formatted); f != "" && f != r.Content {
			if err := o.requests.UpdateContent(ctx, r.ID, f); err != nil {
				return fmt.Errorf("update request %d: %w", r.ID, err)
			}
		}
	}
	return nil
}
